package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Store persists jobs as one JSON file per job under a directory, keyed by
// job id. There is no index; listing scans the directory. A single process
// is assumed to own the store at a time.
type Store struct {
	dir string
}

// NewStore creates the job store, making the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("job store: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the full job record, replacing any previous version.
func (s *Store) Save(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("job store: marshal %s: %w", job.ID, err)
	}
	if err := os.WriteFile(s.path(job.ID), data, 0o644); err != nil {
		return fmt.Errorf("job store: write %s: %w", job.ID, err)
	}
	return nil
}

// Load reads one job by id.
func (s *Store) Load(id string) (*Job, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("job store: read %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("job store: parse %s: %w", id, err)
	}
	return &job, nil
}

// List returns every readable job record. Corrupt or unreadable files are
// logged and skipped so one bad record does not hide the rest.
func (s *Store) List() ([]*Job, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("job store: scan: %w", err)
	}
	var jobs []*Job
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		job, err := s.Load(id)
		if err != nil {
			log.Warn().Err(err).Msgf("[store] skipping unreadable job record %s", e.Name())
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
