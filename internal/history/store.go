package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
)

// StateDir is the directory, relative to the working directory, that holds
// run history.
const StateDir = ".minisciath"

// Store provides persistent storage for run records under:
//
//	<baseDir>/.minisciath/runs/<run-id>/run.json
//
// Writes are atomic and durable.
type Store struct {
	baseDir string
	Logger  *zap.Logger
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir, Logger: zap.NewNop()}, nil
}

func (s *Store) runsRootDir() string {
	return filepath.Join(s.baseDir, StateDir, "runs")
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.runsRootDir(), runID)
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.runDir(runID), "run.json")
}

// ListRunIDs returns all run IDs currently present on disk, sorted.
func (s *Store) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(s.runsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.TrimSpace(e.Name()) == "" {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) SaveRun(run Run) error {
	run.normalize()
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if err := os.MkdirAll(s.runDir(run.RunID), 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.runPath(run.RunID), renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending run file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger().Debug("cleanup pending run file", zap.Error(err))
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace run file: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if strings.TrimSpace(runID) == "" {
		return Run{}, errors.New("runID is required")
	}
	if err := readJSONStrict(s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	if run.RunID != runID {
		return Run{}, fmt.Errorf("invalid run on disk: run_id %q stored under %q", run.RunID, runID)
	}
	return run, nil
}

// LatestForSuite returns the most recent run recorded for suite. Ties on
// start time go to the greater run id. Unreadable records are skipped.
func (s *Store) LatestForSuite(suite string) (Run, bool, error) {
	runs, err := s.loadAll()
	if err != nil {
		return Run{}, false, err
	}
	var (
		best  Run
		found bool
	)
	for _, r := range runs {
		if r.Suite != suite {
			continue
		}
		if !found || newer(r, best) {
			best, found = r, true
		}
	}
	return best, found, nil
}

// Prune removes the oldest runs so that at most keep remain. It returns the
// removed run ids. keep <= 0 disables pruning.
func (s *Store) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	runs, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	if len(runs) <= keep {
		return nil, nil
	}
	sort.Slice(runs, func(i, j int) bool { return newer(runs[i], runs[j]) })

	var removed []string
	for _, r := range runs[keep:] {
		if err := os.RemoveAll(s.runDir(r.RunID)); err != nil {
			return removed, fmt.Errorf("remove run %s: %w", r.RunID, err)
		}
		removed = append(removed, r.RunID)
	}
	sort.Strings(removed)
	return removed, nil
}

func (s *Store) loadAll() ([]Run, error) {
	ids, err := s.ListRunIDs()
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.LoadRun(id)
		if err != nil {
			s.logger().Warn("skipping unreadable run record", zap.String("run_id", id), zap.Error(err))
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func (s *Store) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func newer(a, b Run) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.After(b.StartTime)
	}
	return a.RunID > b.RunID
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("decode %s: trailing content", path)
	}
	return nil
}
