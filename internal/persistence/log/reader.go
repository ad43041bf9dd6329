package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"tagarena.dev/internal/sim/round"
)

// ListFiles returns the rotated files for prefix in chronological order.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// ReadJSONL decodes every line of a zstd JSONL file and hands the raw bytes to fn.
// Stop early by returning an error from fn.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		if err := fn(b); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
	}
	return sc.Err()
}

var headerPrefix = []byte(`{"kind":"` + headerKind + `"`)

func isHeader(line []byte) bool { return bytes.HasPrefix(line, headerPrefix) }

// readStream decodes every non-header line of every segment of stream under roundDir.
func readStream[T any](roundDir, stream string, fn func(T) error) error {
	files, err := ListFiles(filepath.Join(roundDir, stream), stream)
	if err != nil {
		return err
	}
	for _, p := range files {
		err := ReadJSONL(p, func(b []byte) error {
			if isHeader(b) {
				return nil
			}
			var v T
			if err := json.Unmarshal(b, &v); err != nil {
				return err
			}
			return fn(v)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadTicks streams every tick entry under roundDir/ticks in order.
func ReadTicks(roundDir string, fn func(round.TickLogEntry) error) error {
	return readStream(roundDir, "ticks", fn)
}

func ReadEvents(roundDir string, fn func(round.Event) error) error {
	return readStream(roundDir, "events", fn)
}

// ReadHeaders returns every segment header of stream in file order. A segment
// reopened after a restart carries more than one.
func ReadHeaders(roundDir, stream string) ([]SegmentHeader, error) {
	files, err := ListFiles(filepath.Join(roundDir, stream), stream)
	if err != nil {
		return nil, err
	}
	var out []SegmentHeader
	for _, p := range files {
		err := ReadJSONL(p, func(b []byte) error {
			if !isHeader(b) {
				return nil
			}
			var h SegmentHeader
			if err := json.Unmarshal(b, &h); err != nil {
				return err
			}
			out = append(out, h)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
