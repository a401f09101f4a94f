// Package store persists per-chunk results as individual JSON files under
// the run directory. Every write is atomic (temp file + fsync + rename), so
// a crash at any point leaves each chunk file either absent, at its previous
// version, or fully written; that property alone makes resume possible
// without a central log.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tamlil/tamlil/internal/atomicfile"
)

const (
	// chunkFilePattern names chunk files so lexical order equals index order.
	chunkFilePattern = "chunk_%06d.json"

	chunkFilePerm = 0o644
	chunkDirPerm  = 0o750
)

// Store owns the chunks/ directory of one run. The run coordinator holds
// exclusive write access to the run directory; within it, atomic renames
// serialize visibility per index without any lock.
type Store struct {
	dir string
}

// New creates (or reattaches to) the chunk store under runDir.
func New(runDir string) (*Store, error) {
	dir := filepath.Join(runDir, "chunks")
	if err := os.MkdirAll(dir, chunkDirPerm); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the chunk directory path.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf(chunkFilePattern, index))
}

// Write persists the chunk result atomically.
func (s *Store) Write(res *ChunkResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunk %d: %w", res.Index, err)
	}
	if err := atomicfile.WriteFile(s.path(res.Index), data, chunkFilePerm); err != nil {
		return fmt.Errorf("persist chunk %d: %w", res.Index, err)
	}
	return nil
}

// Read loads the chunk result for index.
// A malformed file yields ErrCorruptChunk; a missing one, fs.ErrNotExist.
func (s *Store) Read(index int) (*ChunkResult, error) {
	data, err := os.ReadFile(s.path(index))
	if err != nil {
		return nil, err
	}
	var res ChunkResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorruptChunk, index, err)
	}
	return &res, nil
}

// Exists reports whether a chunk file for index is present.
func (s *Store) Exists(index int) bool {
	_, err := os.Stat(s.path(index))
	return err == nil
}

// List returns the sorted indices of all chunk files present.
func (s *Store) List() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan chunk directory: %w", err)
	}
	var indices []int
	for _, e := range entries {
		var idx int
		if n, err := fmt.Sscanf(e.Name(), chunkFilePattern, &idx); n == 1 && err == nil {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	return indices, nil
}

// Scan reads every chunk file, resetting interrupted work: Processing and
// Failed entries revert to Pending (rewritten on disk) so a resumed run
// picks them up, while Completed and Skipped entries are returned as-is.
func (s *Store) Scan() (map[int]*ChunkResult, error) {
	indices, err := s.List()
	if err != nil {
		return nil, err
	}

	results := make(map[int]*ChunkResult, len(indices))
	for _, idx := range indices {
		res, err := s.Read(idx)
		if err != nil {
			return nil, err
		}
		if res.Status == StatusProcessing || res.Status == StatusFailed {
			res.Status = StatusPending
			res.FinishedAt = nil
			res.ErrorKind = ""
			if err := s.Write(res); err != nil {
				return nil, err
			}
		}
		results[idx] = res
	}
	return results, nil
}
