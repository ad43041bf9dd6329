package level

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tagarena.dev/internal/sim/mathx"
	"tagarena.dev/internal/sim/tuning"
)

// DefaultID is the built-in arena used when no level directory is configured.
const DefaultID = "arena"

// Catalog is the set of levels available to a server.
type Catalog struct {
	ByID   map[string]Spec
	Digest string
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// LoadCatalog reads every *.yaml/*.yml level in dir. A missing directory yields a
// catalog holding only the built-in arena.
func LoadCatalog(dir string) (*Catalog, error) {
	c := &Catalog{ByID: map[string]Spec{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.ByID[DefaultID] = DefaultSpec()
			c.Digest = sha256Hex(nil)
			return c, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n := e.Name(); strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml") {
			files = append(files, filepath.Join(dir, n))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var spec Spec
		if err := yaml.Unmarshal(b, &spec); err != nil {
			return nil, fmt.Errorf("level %s: %w", filepath.Base(p), err)
		}
		if spec.ID == "" {
			return nil, fmt.Errorf("level %s: missing id", filepath.Base(p))
		}
		if _, dup := c.ByID[spec.ID]; dup {
			return nil, fmt.Errorf("level %s: duplicate id %q", filepath.Base(p), spec.ID)
		}
		if _, err := Build(spec); err != nil {
			return nil, fmt.Errorf("level %s: %w", filepath.Base(p), err)
		}
		c.ByID[spec.ID] = spec
	}
	if _, ok := c.ByID[DefaultID]; !ok {
		c.ByID[DefaultID] = DefaultSpec()
	}
	c.Digest = sha256Hex(concat.Bytes())
	return c, nil
}

// Get builds the level with the given id.
func (c *Catalog) Get(id string) (*Level, error) {
	spec, ok := c.ByID[id]
	if !ok {
		return nil, tuning.NewConfigError("level", fmt.Sprintf("unknown level id %q", id))
	}
	return Build(spec)
}

func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.ByID))
	for id := range c.ByID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func box(x0, y0, x1, y1 float64) SolidSpec {
	return SolidSpec{Box: &mathx.AABB{Min: mathx.V(x0, y0), Max: mathx.V(x1, y1)}}
}

// DefaultSpec is a walled 16x9 arena with three ledges, a ramp and one teleporter pair.
func DefaultSpec() Spec {
	return Spec{
		ID:     DefaultID,
		Bounds: mathx.AABB{Min: mathx.V(-7.5, 0.5), Max: mathx.V(7.5, 8)},
		Tokens: 2,
		Solids: []SolidSpec{
			{Name: "floor", Box: &mathx.AABB{Min: mathx.V(-8, -1), Max: mathx.V(8, 0)}},
			{Name: "wall_left", Box: &mathx.AABB{Min: mathx.V(-9, -1), Max: mathx.V(-8, 10)}},
			{Name: "wall_right", Box: &mathx.AABB{Min: mathx.V(8, -1), Max: mathx.V(9, 10)}},
			box(-6, 2.5, -3, 2.8),
			box(3, 2.5, 6, 2.8),
			box(-1.5, 4.5, 1.5, 4.8),
			{Name: "ramp", Polygon: []mathx.Vec2{mathx.V(-2, 0), mathx.V(0, 0), mathx.V(0, 1)}},
		},
		Teleporters: []TeleporterSpec{
			{Area: mathx.AABB{Min: mathx.V(-7.9, 0), Max: mathx.V(-7.6, 1)}, Destination: mathx.V(7, 0.05)},
			{Area: mathx.AABB{Min: mathx.V(7.6, 0), Max: mathx.V(7.9, 1)}, Destination: mathx.V(-7, 0.05)},
		},
		DeathZones: []mathx.AABB{{Min: mathx.V(-20, -20), Max: mathx.V(20, -5)}},
	}
}
