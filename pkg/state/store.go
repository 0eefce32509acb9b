// Package state persists the seen-set and run bookkeeping between
// invocations as a single JSON document on disk.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/srbpsu18/canvas-alerts/pkg/domain"
)

// SeenAssignment records when an assignment first appeared in a digest
type SeenAssignment struct {
	Name      string     `json:"name"`
	Course    string     `json:"course"`
	DueAt     *time.Time `json:"due_at"`
	FirstSeen time.Time  `json:"first_seen"`
}

// State is the persisted run state. SeenAssignments grows monotonically,
// nothing is ever evicted. LastSlot deduplicates double-fired schedules.
type State struct {
	LastSlot        string                    `json:"last_slot,omitempty"`
	LastMorningRun  *time.Time                `json:"last_morning_run"`
	LastEveningRun  *time.Time                `json:"last_evening_run"`
	SeenAssignments map[string]SeenAssignment `json:"seen_assignments"`
}

// New returns an empty state
func New() *State {
	return &State{SeenAssignments: map[string]SeenAssignment{}}
}

// Seen reports whether the assignment was reported in a prior digest
func (s *State) Seen(id int64) bool {
	_, ok := s.SeenAssignments[strconv.FormatInt(id, 10)]
	return ok
}

// MarkSeen adds an assignment to the seen-set. Repeat calls keep the
// original first-seen record.
func (s *State) MarkSeen(a domain.Assignment, now time.Time) {
	if s.SeenAssignments == nil {
		s.SeenAssignments = map[string]SeenAssignment{}
	}
	key := strconv.FormatInt(a.ID, 10)
	if _, ok := s.SeenAssignments[key]; ok {
		return
	}
	rec := SeenAssignment{Name: a.Name, Course: a.CourseName, FirstSeen: now}
	if d := a.Deadline(); d != nil {
		due := *d
		rec.DueAt = &due
	}
	s.SeenAssignments[key] = rec
}

// LastRun returns the completion time of the previous run in the given mode,
// nil when that mode never ran
func (s *State) LastRun(mode string) *time.Time {
	if mode == "evening" {
		return s.LastEveningRun
	}
	return s.LastMorningRun
}

// SetLastRun records a completed run in the given mode
func (s *State) SetLastRun(mode string, now time.Time) {
	if mode == "evening" {
		s.LastEveningRun = &now
		return
	}
	s.LastMorningRun = &now
}

// Store reads and writes the state document at a fixed path
type Store struct {
	path string
}

// NewStore makes a store backed by the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the state file. A missing file is a normal first run and yields
// an empty state with no error. A corrupt or unreadable file also yields an
// empty usable state plus an error for the caller to log, losing new-item
// accuracy for one run is preferable to failing the whole digest.
func (st *Store) Load() (*State, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return New(), fmt.Errorf("read state file %s: %w", st.path, err)
	}

	res := New()
	if err := json.Unmarshal(data, res); err != nil {
		return New(), fmt.Errorf("parse state file %s: %w", st.path, err)
	}
	if res.SeenAssignments == nil {
		res.SeenAssignments = map[string]SeenAssignment{}
	}
	return res, nil
}

// Save writes the state atomically, temp file in the same directory then
// rename, so a crash mid-write can't leave a truncated document behind
func (st *Store) Save(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(st.path), filepath.Base(st.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		return fmt.Errorf("replace state file %s: %w", st.path, err)
	}
	return nil
}
