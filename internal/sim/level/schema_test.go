package level

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

func yamlAsJSONValue(t *testing.T, raw []byte) any {
	t.Helper()
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return v
}

func TestSchema_ShippedLevelFiles(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "level_config.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	files, err := filepath.Glob(filepath.Join("..", "..", "..", "configs", "levels", "*.yaml"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no level files: %v", err)
	}
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if err := s.Validate(yamlAsJSONValue(t, raw)); err != nil {
			t.Fatalf("%s: %v", filepath.Base(p), err)
		}
	}
}

func TestSchema_RejectsBoxAndPolygon(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "level_config.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	doc := `id: bad
bounds: {min: {x: 0, y: 0}, max: {x: 1, y: 1}}
tokens: 1
solids:
  - box: {min: {x: 0, y: 0}, max: {x: 1, y: 1}}
    polygon: [{x: 0, y: 0}, {x: 1, y: 0}, {x: 1, y: 1}]
`
	if err := s.Validate(yamlAsJSONValue(t, []byte(doc))); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := Build(mustSpec(t, doc)); err == nil {
		t.Fatalf("Build accepted a solid with both box and polygon")
	}
}

func mustSpec(t *testing.T, doc string) Spec {
	t.Helper()
	var spec Spec
	if err := yaml.Unmarshal([]byte(doc), &spec); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return spec
}
