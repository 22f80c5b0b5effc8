package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFileName is the cache file created inside the data directory.
const DefaultFileName = "locations.json"

// FileBackend keeps the cache as one JSON object on disk:
//
//	{"boston": {"display_name": "Boston, ...", "lat": "42.35", "lon": "-71.05"}, "nowhereville": null}
type FileBackend struct {
	path string
}

// NewFileBackend stores the cache in dataDir/fileName. An empty fileName means DefaultFileName.
func NewFileBackend(dataDir, fileName string) *FileBackend {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &FileBackend{path: filepath.Join(dataDir, fileName)}
}

// Name implements Backend.
func (b *FileBackend) Name() string {
	return "file"
}

// Path returns the location of the cache file.
func (b *FileBackend) Path() string {
	return b.path
}

// Load implements Backend. A missing file is an empty cache.
func (b *FileBackend) Load(ctx context.Context) (map[string]*Record, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]*Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}

	entries, err := decodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, b.path, err)
	}
	return entries, nil
}

// Save implements Backend. The snapshot is written to a temporary file in the
// same directory and renamed over the old file, so a crash mid-write leaves
// the previous file intact.
func (b *FileBackend) Save(ctx context.Context, snapshot map[string]*Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode locations: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}

// decodeEntries parses the cache file contents.
func decodeEntries(data []byte) (map[string]*Record, error) {
	var entries map[string]*Record
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		return nil, errors.New("top-level value is null")
	}
	for key, rec := range entries {
		if rec == nil {
			continue
		}
		if err := rec.validate(); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
	}
	return entries, nil
}
