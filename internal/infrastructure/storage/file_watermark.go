package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

// FileWatermarkStore keeps watermarks in an append-only JSONL file. The
// largest value per scope wins on load, so a stale line never rewinds a scope.
// Lines that do not parse are skipped; the next write compacts the file.
type FileWatermarkStore struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	marks   map[string]domain.ItemID
	compact bool
}

var _ ports.WatermarkStore = (*FileWatermarkStore)(nil)

type watermarkRecord struct {
	Scope  string `json:"scope"`
	LastID uint64 `json:"last_id"`
}

// NewFileWatermarkStore loads existing records from path, creating its directory.
func NewFileWatermarkStore(path string, logger *slog.Logger) (*FileWatermarkStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watermark path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create watermark directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	store := &FileWatermarkStore{
		path:   path,
		logger: logger.With("component", "watermark", "path", path),
		marks:  map[string]domain.ItemID{},
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (f *FileWatermarkStore) load() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read watermark file: %w", err)
	}

	// an unterminated tail is what an interrupted append leaves behind
	if len(data) > 0 && data[len(data)-1] != '\n' {
		f.compact = true
	}

	for i, text := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}

		var record watermarkRecord
		if err := json.Unmarshal(text, &record); err != nil || record.Scope == "" {
			f.logger.Warn("skipping unreadable watermark line", "line", i+1, "error", err)
			f.compact = true
			continue
		}
		if id := domain.ItemID(record.LastID); id > f.marks[record.Scope] {
			f.marks[record.Scope] = id
		}
	}
	return nil
}

// Get returns 0 for unknown scopes.
func (f *FileWatermarkStore) Get(ctx context.Context, scope string) (domain.ItemID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marks[scope], nil
}

// Set appends a record only when value exceeds the stored watermark.
func (f *FileWatermarkStore) Set(ctx context.Context, scope string, value domain.ItemID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if value <= f.marks[scope] {
		return nil
	}

	if f.compact {
		marks := maps.Clone(f.marks)
		marks[scope] = value
		if err := f.rewrite(marks); err != nil {
			return err
		}
		f.marks = marks
		f.compact = false
		f.logger.Info("watermark file compacted", "scopes", len(marks))
		return nil
	}

	data, err := json.Marshal(watermarkRecord{Scope: scope, LastID: uint64(value)})
	if err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open watermark file for append: %w", err)
	}
	if err := writeSynced(file, append(data, '\n')); err != nil {
		return err
	}

	f.marks[scope] = value
	return nil
}

// rewrite replaces the file with one line per scope via a rename.
func (f *FileWatermarkStore) rewrite(marks map[string]domain.ItemID) error {
	var buf bytes.Buffer
	for _, scope := range slices.Sorted(maps.Keys(marks)) {
		data, err := json.Marshal(watermarkRecord{Scope: scope, LastID: uint64(marks[scope])})
		if err != nil {
			return fmt.Errorf("encode watermark: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	tmp := f.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open watermark temp file: %w", err)
	}
	if err := writeSynced(file, buf.Bytes()); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace watermark file: %w", err)
	}
	return nil
}

func writeSynced(file *os.File, data []byte) error {
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write watermark: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync watermark file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close watermark file: %w", err)
	}
	return nil
}
