// Package store persists simulation runs: metadata as JSON, the
// trajectory as CSV, one directory per run under a base data dir.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ahoven/gridyn/internal/solvers"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string     `json:"id"`
	Case        string     `json:"case"`
	Timestamp   time.Time  `json:"timestamp"`
	Stepper     string     `json:"stepper"`
	Dt          float64    `json:"dt"`
	Span        [2]float64 `json:"span"`
	Initialized bool       `json:"initialized"`
	Stable      *bool      `json:"stable,omitempty"`
	StepsTaken  int        `json:"steps_taken"`
	EventsFired int        `json:"events_fired"`
}

// Save writes one run directory with metadata.json and trajectory.csv.
// Column headers come from the layout's state names.
func (s *Store) Save(meta RunMetadata, names []string, tr *solvers.Trajectory) (string, error) {
	runID := fmt.Sprintf("%s_%s", meta.Case, uuid.New().String()[:8])
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.StepsTaken = tr.StepsTaken
	meta.EventsFired = tr.EventsFired

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "trajectory.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := append([]string{"time"}, names...)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i := range tr.States {
		row := make([]string, 0, len(tr.States[i])+1)
		row = append(row, strconv.FormatFloat(tr.Times[i], 'g', 10, 64))
		for _, v := range tr.States[i] {
			row = append(row, strconv.FormatFloat(v, 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, nil
}

// List returns every stored run's metadata, newest last.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}
	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Meta(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

// Meta loads one run's metadata.
func (s *Store) Meta(runID string) (RunMetadata, error) {
	var meta RunMetadata
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// Trajectory loads one run's recorded series: header names, times,
// and state rows.
func (s *Store) Trajectory(runID string) ([]string, []float64, [][]float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "trajectory.csv"))
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil, fmt.Errorf("store: run %s has an empty trajectory", runID)
	}
	names := rows[0][1:]
	times := make([]float64, 0, len(rows)-1)
	states := make([][]float64, 0, len(rows)-1)
	for _, row := range rows[1:] {
		t, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, nil, nil, err
		}
		vals := make([]float64, len(row)-1)
		for i, cell := range row[1:] {
			if vals[i], err = strconv.ParseFloat(cell, 64); err != nil {
				return nil, nil, nil, err
			}
		}
		times = append(times, t)
		states = append(states, vals)
	}
	return names, times, states, nil
}

// ExportJSON writes one run as a single JSON document to path, or to
// stdout when path is empty.
func (s *Store) ExportJSON(runID, path string) error {
	meta, err := s.Meta(runID)
	if err != nil {
		return err
	}
	names, times, states, err := s.Trajectory(runID)
	if err != nil {
		return err
	}
	doc := struct {
		Meta   RunMetadata `json:"meta"`
		Names  []string    `json:"names"`
		Times  []float64   `json:"times"`
		States [][]float64 `json:"states"`
	}{meta, names, times, states}

	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
