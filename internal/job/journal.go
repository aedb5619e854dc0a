package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const journalPrefix = "job-"

// Journal stores job records as JSON files in a directory.
type Journal struct {
	dir string
}

// NewJournal creates a journal rooted at dir. The directory is created on
// first save.
func NewJournal(dir string) *Journal {
	return &Journal{dir: dir}
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Save writes the job atomically, replacing any earlier record of it.
func (j *Journal) Save(wj *WriteJob) error {
	if err := os.MkdirAll(j.dir, 0700); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	finalPath := filepath.Join(j.dir, journalPrefix+wj.ID+".json")
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(wj, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temporary job file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename job file: %w", err)
	}

	df, err := os.Open(j.dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync journal directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}

// Load reads one job record.
func Load(path string) (*WriteJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var wj WriteJob
	if err := json.Unmarshal(data, &wj); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", filepath.Base(path), err)
	}
	return &wj, nil
}

// List returns every recorded job, newest first. A missing journal
// directory yields an empty list.
func (j *Journal) List() ([]*WriteJob, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read journal directory: %w", err)
	}

	var jobs []*WriteJob
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, journalPrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		wj, err := Load(filepath.Join(j.dir, name))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, wj)
	}

	sort.SliceStable(jobs, func(a, b int) bool {
		return jobs[a].Timestamp.After(jobs[b].Timestamp)
	})
	return jobs, nil
}
