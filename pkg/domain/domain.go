// Package domain defines the data types shared across canvas-alerts:
// courses, assignments, announcements and calendar events as fetched
// from the Canvas API, plus the deadline helpers the classifier and
// renderer agree on.
package domain

import "time"

// Course represents an enrolled Canvas course
type Course struct {
	ID      int64
	Name    string
	Code    string
	StartAt *time.Time
	EndAt   *time.Time
}

// Label returns the short course label used in the digest, preferring
// the course code over the full name
func (c Course) Label() string {
	if c.Code != "" {
		return c.Code
	}
	if c.Name != "" {
		return c.Name
	}
	return "Unknown Course"
}

// Assignment is a single course assignment snapshot, fetched fresh each run
type Assignment struct {
	ID              int64
	CourseID        int64
	CourseName      string
	Name            string
	Description     string // raw HTML from the API
	DueAt           *time.Time
	LockAt          *time.Time
	PointsPossible  float64
	SubmissionTypes []string
	HTMLURL         string
	Submitted       bool
}

// Deadline returns the effective deadline: the earlier of DueAt and LockAt
// when both are set, otherwise whichever exists, otherwise nil. Canvas may
// lock an assignment before its nominal due time.
func (a Assignment) Deadline() *time.Time {
	switch {
	case a.DueAt != nil && a.LockAt != nil:
		if a.LockAt.Before(*a.DueAt) {
			return a.LockAt
		}
		return a.DueAt
	case a.DueAt != nil:
		return a.DueAt
	default:
		return a.LockAt
	}
}

// Announcement is a course announcement within the lookback window
type Announcement struct {
	ID         int64
	CourseName string
	Title      string
	Message    string // raw HTML from the API
	HTMLURL    string
	PostedAt   time.Time
}

// Event is an upcoming calendar entry. Canvas emits assignment-backed
// events; those carry the assignment so it can join the assignment pool.
type Event struct {
	ID         int64
	CourseName string
	Title      string
	StartAt    *time.Time
	Assignment *Assignment
}
