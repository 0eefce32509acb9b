// Package digest turns a fetched Canvas snapshot into urgency buckets and
// renders them as self-contained HTML email documents.
package digest

import (
	"sort"
	"time"

	"github.com/srbpsu18/canvas-alerts/pkg/domain"
)

// default classification settings
const (
	DefaultSoonDays   = 3
	DefaultHighStakes = 10.0
)

// SeenSet reports whether an assignment was already surfaced in a past digest
type SeenSet interface {
	Seen(id int64) bool
}

// Options tunes the classifier
type Options struct {
	SoonDays      int  // due-soon horizon in days past tomorrow, 3 when zero
	ReportUndated bool // surface undated unseen assignments in the new section
}

// Result groups the snapshot by urgency. Buckets hold unsubmitted
// assignments only, except New which tracks first appearance regardless
// of submission state. Slices are sorted and safe to render directly.
type Result struct {
	Missed        []domain.Assignment
	DueToday      []domain.Assignment
	DueTomorrow   []domain.Assignment
	DueSoon       []domain.Assignment
	New           []domain.Assignment
	Announcements []domain.Announcement
}

// Empty reports whether the digest has nothing to show
func (r Result) Empty() bool {
	return len(r.Missed) == 0 && len(r.DueToday) == 0 && len(r.DueTomorrow) == 0 &&
		len(r.DueSoon) == 0 && len(r.New) == 0 && len(r.Announcements) == 0
}

// Total returns the number of assignments across urgency buckets,
// counting an assignment once per bucket it appears in
func (r Result) Total() int {
	return len(r.Missed) + len(r.DueToday) + len(r.DueTomorrow) + len(r.DueSoon) + len(r.New)
}

// Classify buckets assignments by deadline urgency relative to now and tags
// unseen ones as new. Day boundaries follow now's location, so a 23:59
// deadline lands on the right day for the user, not for UTC. An assignment
// can appear in a deadline bucket and in New at the same time.
func Classify(now time.Time, assignments []domain.Assignment, announcements []domain.Announcement, seen SeenSet, opts Options) Result {
	soonDays := opts.SoonDays
	if soonDays <= 0 {
		soonDays = DefaultSoonDays
	}

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayEnd := todayStart.AddDate(0, 0, 1)
	tomorrowEnd := todayStart.AddDate(0, 0, 2)
	soonEnd := todayStart.AddDate(0, 0, soonDays+1)

	var res Result
	for _, a := range assignments {
		deadline := a.Deadline()

		if deadline == nil {
			if opts.ReportUndated && !seen.Seen(a.ID) {
				res.New = append(res.New, a)
			}
			continue
		}

		if !seen.Seen(a.ID) {
			res.New = append(res.New, a)
		}
		if a.Submitted {
			continue
		}

		switch {
		case deadline.Before(now):
			res.Missed = append(res.Missed, a)
		case deadline.Before(todayEnd):
			res.DueToday = append(res.DueToday, a)
		case deadline.Before(tomorrowEnd):
			res.DueTomorrow = append(res.DueTomorrow, a)
		case deadline.Before(soonEnd):
			res.DueSoon = append(res.DueSoon, a)
		}
	}

	sortAssignments(res.Missed)
	sortAssignments(res.DueToday)
	sortAssignments(res.DueTomorrow)
	sortAssignments(res.DueSoon)
	sortAssignments(res.New)

	res.Announcements = append(res.Announcements, announcements...)
	sort.SliceStable(res.Announcements, func(i, j int) bool {
		if !res.Announcements[i].PostedAt.Equal(res.Announcements[j].PostedAt) {
			return res.Announcements[i].PostedAt.Before(res.Announcements[j].PostedAt)
		}
		if res.Announcements[i].CourseName != res.Announcements[j].CourseName {
			return res.Announcements[i].CourseName < res.Announcements[j].CourseName
		}
		return res.Announcements[i].Title < res.Announcements[j].Title
	})

	return res
}

// sortAssignments orders by deadline ascending with undated last, breaking
// ties by course then name so repeated runs render identical documents
func sortAssignments(items []domain.Assignment) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i].Deadline(), items[j].Deadline()
		switch {
		case di == nil && dj == nil:
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		}
		if items[i].CourseName != items[j].CourseName {
			return items[i].CourseName < items[j].CourseName
		}
		return items[i].Name < items[j].Name
	})
}
