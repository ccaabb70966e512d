// Package checkpoint persists sampled id sets, anonymized datasets and their
// quality statistics so later runs with a compatible configuration can reuse them.
package checkpoint

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuongbtq/phantom-risk/internal/dataset"
	"github.com/cuongbtq/phantom-risk/internal/metrics"
	"github.com/cuongbtq/phantom-risk/internal/sampling"
	"github.com/cuongbtq/phantom-risk/internal/statistics"
)

// CheckpointLoadError wraps an I/O or parse failure of one artifact file
type CheckpointLoadError struct {
	Path string
	Err  error
}

func (e *CheckpointLoadError) Error() string {
	return fmt.Sprintf("failed to load checkpoint %s: %v", e.Path, e.Err)
}

func (e *CheckpointLoadError) Unwrap() []error {
	return []error{ErrCheckpointLoad, e.Err}
}

// Store reads and writes the artifacts of one risk assessment directory.
// The availability index is built once in Open and never changes, so Exists
// is safe for concurrent use. Loads and saves of distinct keys may run concurrently.
type Store struct {
	dir      string
	useSaved bool
	index    map[string]struct{}
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Open validates the configuration layers under root against snapshot and
// indexes the available artifacts. An incompatible layer fails with an
// *IncompatibleConfigError before anything is written.
func Open(root string, snapshot Snapshot, logger *slog.Logger, m *metrics.Metrics) (*Store, error) {
	useSaved, err := initLayers(root, snapshot, logger)
	if err != nil {
		return nil, err
	}

	_, _, dir := snapshot.Dirs(root)
	s := &Store{
		dir:      dir,
		useSaved: useSaved,
		index:    make(map[string]struct{}),
		logger:   logger,
		metrics:  m,
	}

	if !useSaved {
		logger.Info("Checkpoint data will be generated", slog.String("dir", dir))
		return s, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoint directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, _, ok := ParseFileName(e.Name()); ok {
			s.index[e.Name()] = struct{}{}
		}
	}

	logger.Info("Found checkpoint data",
		slog.String("dir", dir),
		slog.Int("files", len(s.index)))
	return s, nil
}

// Disabled returns a store that never reports artifacts and never writes
func Disabled() *Store {
	return &Store{index: map[string]struct{}{}}
}

// Enabled reports whether the store persists artifacts
func (s *Store) Enabled() bool {
	return s.dir != ""
}

// Dir returns the risk assessment layer directory
func (s *Store) Dir() string {
	return s.dir
}

// UseSaved reports whether existing artifacts may be reused
func (s *Store) UseSaved() bool {
	return s.useSaved
}

// Exists reports whether every file of the artifact was present when the store was opened
func (s *Store) Exists(key Key) bool {
	if !s.useSaved {
		return false
	}
	if key.Artifact.PerRun() {
		return s.has(FileName(key, KindIDs))
	}
	if !s.has(FileName(key, KindData)) {
		return false
	}
	return !key.Artifact.HasStatistics() || s.has(FileName(key, KindStatistics))
}

func (s *Store) has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s *Store) path(key Key, kind FileKind) string {
	return filepath.Join(s.dir, FileName(key, kind))
}

// LoadDataset reads an anonymized dataset bound to def
func (s *Store) LoadDataset(key Key, def *dataset.Definition) (*dataset.Dataset, error) {
	path := s.path(key, KindData)
	d, err := dataset.Load(path, def)
	if err != nil {
		return nil, &CheckpointLoadError{Path: path, Err: err}
	}
	s.metrics.CheckpointHit(key.Artifact.String())
	return d, nil
}

// LoadStatistics reads the quality statistics snapshot of a test artifact
func (s *Store) LoadStatistics(key Key) (statistics.Snapshot, error) {
	path := s.path(key, KindStatistics)
	f, err := os.Open(path)
	if err != nil {
		return statistics.Snapshot{}, &CheckpointLoadError{Path: path, Err: err}
	}
	defer f.Close()

	snap, err := statistics.Decode(f)
	if err != nil {
		return statistics.Snapshot{}, &CheckpointLoadError{Path: path, Err: err}
	}
	return snap, nil
}

// LoadIDs reads a per-run id list
func (s *Store) LoadIDs(key Key) (sampling.IDSet, error) {
	path := s.path(key, KindIDs)
	f, err := os.Open(path)
	if err != nil {
		return nil, &CheckpointLoadError{Path: path, Err: err}
	}
	defer f.Close()

	var ids []int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, &CheckpointLoadError{Path: path, Err: err}
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, &CheckpointLoadError{Path: path, Err: err}
	}

	s.metrics.CheckpointHit(key.Artifact.String())
	return sampling.NewIDSet(ids...), nil
}

// SaveDataset persists an anonymized dataset, plus stats for test artifacts.
// Failures are logged and dropped; the artifact is regenerated on a later run.
func (s *Store) SaveDataset(key Key, d *dataset.Dataset, stats *statistics.Snapshot) {
	if !s.Enabled() {
		return
	}
	s.write(key, KindData, d.Write)
	if key.Artifact.HasStatistics() && stats != nil {
		s.write(key, KindStatistics, stats.Encode)
	}
}

// SaveIDs persists a per-run id list, one id per line. Failures are logged and dropped.
func (s *Store) SaveIDs(key Key, ids sampling.IDSet) {
	if !s.Enabled() {
		return
	}
	s.write(key, KindIDs, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, id := range ids {
			if _, err := bw.WriteString(strconv.Itoa(id) + "\n"); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// write stages the file next to its destination and renames it into place
// so a crash never leaves a truncated artifact under the canonical name
func (s *Store) write(key Key, kind FileKind, encode func(io.Writer) error) {
	path := s.path(key, kind)
	if err := writeAtomic(path, encode); err != nil {
		s.metrics.CheckpointWriteFailed()
		s.logger.Error("Checkpoint failure, artifact not saved",
			slog.String("artifact", key.String()),
			slog.String("path", path),
			slog.Any("error", err))
	}
}

func writeAtomic(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename artifact: %w", err)
	}
	return nil
}
