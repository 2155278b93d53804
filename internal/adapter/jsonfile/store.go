// Package jsonfile persists the curated dam list, the station master and the
// realtime snapshot as JSON files.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/couchcryptid/dam-data-etl/internal/domain"
)

// ErrNotFound is returned when a required input file does not exist.
var ErrNotFound = errors.New("file not found")

// LoadDams reads the curated dam list.
func LoadDams(path string) ([]domain.Dam, error) {
	var list domain.DamList
	if err := readJSON(path, &list); err != nil {
		return nil, fmt.Errorf("load dams: %w", err)
	}
	return list.Dams, nil
}

// LoadMaster reads the station master. A file without stations is valid and
// yields an empty map.
func LoadMaster(path string) (domain.MasterFile, error) {
	var m domain.MasterFile
	if err := readJSON(path, &m); err != nil {
		return domain.MasterFile{}, fmt.Errorf("load master: %w", err)
	}
	if m.Stations == nil {
		m.Stations = make(map[string]domain.Station)
	}
	return m, nil
}

// SaveMaster replaces the station master file.
func SaveMaster(path string, m domain.MasterFile) error {
	if err := writeJSON(path, m); err != nil {
		return fmt.Errorf("save master: %w", err)
	}
	return nil
}

// LoadAliases returns the built-in alias table extended by the entries of an
// optional JSON object file mapping upstream names to curated names. File
// entries override built-in ones. An empty path yields the built-in table.
func LoadAliases(path string) (map[string]string, error) {
	aliases := maps.Clone(domain.DefaultNameAliases)
	if path == "" {
		return aliases, nil
	}
	var extra map[string]string
	if err := readJSON(path, &extra); err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	maps.Copy(aliases, extra)
	return aliases, nil
}

// LoadSnapshot reads a realtime snapshot, keeping its member order.
func LoadSnapshot(path string) (domain.Snapshot, error) {
	var s domain.Snapshot
	if err := readJSON(path, &s); err != nil {
		return domain.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s, nil
}

// SnapshotStore writes each snapshot over a single file.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store for the given output path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Name identifies the sink in logs.
func (s *SnapshotStore) Name() string { return "file" }

// Write replaces the snapshot file. The run id is not part of the file format.
func (s *SnapshotStore) Write(_ context.Context, _ string, snap domain.Snapshot) error {
	if err := writeJSON(s.path, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSON encodes v with two-space indentation and unescaped non-ASCII,
// then swaps it into place so readers never see a partial file.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("finalize temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
