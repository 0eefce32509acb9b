// Package runner drives one digest invocation end to end: load state,
// fetch the Canvas snapshot, classify, render, send and persist. One
// process run produces exactly one terminal outcome.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/srbpsu18/canvas-alerts/pkg/canvas"
	"github.com/srbpsu18/canvas-alerts/pkg/digest"
	"github.com/srbpsu18/canvas-alerts/pkg/domain"
	"github.com/srbpsu18/canvas-alerts/pkg/history"
	"github.com/srbpsu18/canvas-alerts/pkg/mailer"
	"github.com/srbpsu18/canvas-alerts/pkg/state"
)

//go:generate moq -out mocks/lms.go -pkg mocks -skip-ensure -fmt goimports . LMS
//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/sender.go -pkg mocks -skip-ensure -fmt goimports . Sender
//go:generate moq -out mocks/recorder.go -pkg mocks -skip-ensure -fmt goimports . Recorder

// LMS fetches the per-run snapshot from the Canvas API
type LMS interface {
	ActiveCourses(ctx context.Context, now time.Time) ([]domain.Course, error)
	Assignments(ctx context.Context, courseID int64, bucket string) ([]domain.Assignment, error)
	Announcements(ctx context.Context, courseID int64, since time.Time) ([]domain.Announcement, error)
	TodoAssignments(ctx context.Context) ([]domain.Assignment, error)
	UpcomingEvents(ctx context.Context) ([]domain.Event, error)
}

// Store loads and saves the seen-assignment state between runs
type Store interface {
	Load() (*state.State, error)
	Save(s *state.State) error
}

// Sender delivers a rendered digest
type Sender interface {
	Send(ctx context.Context, e mailer.Email) error
}

// Recorder appends finished runs to the run ledger
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// digest modes
const (
	ModeMorning = "morning"
	ModeEvening = "evening"
)

// Outcome is the terminal result of a single run
type Outcome string

// terminal outcomes
const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Params configures a Runner
type Params struct {
	LMS      LMS
	Store    Store
	Sender   Sender
	Recorder Recorder         // optional, nil disables the run ledger
	Renderer *digest.Renderer // nil gets a renderer with default thresholds

	Mode         string         // morning or evening, empty picks by time of day
	Timezone     *time.Location // nil defaults to time.Local
	Recipients   []string
	AnnounceDays int // announcement lookback in days for a first run, 1 when zero
	Classify     digest.Options
	ErrorEmail   bool // email a failure notice when the course fetch fails
}

// Runner executes digest runs
type Runner struct {
	lms      LMS
	store    Store
	sender   Sender
	recorder Recorder
	renderer *digest.Renderer

	mode         string
	tz           *time.Location
	recipients   []string
	announceDays int
	classify     digest.Options
	errorEmail   bool
}

// New creates a Runner with defaults applied
func New(params Params) *Runner {
	if params.Timezone == nil {
		params.Timezone = time.Local
	}
	if params.AnnounceDays == 0 {
		params.AnnounceDays = 1
	}
	if params.Renderer == nil {
		params.Renderer = digest.NewRenderer(params.Timezone, 0, params.Classify.SoonDays)
	}
	return &Runner{
		lms:          params.LMS,
		store:        params.Store,
		sender:       params.Sender,
		recorder:     params.Recorder,
		renderer:     params.Renderer,
		mode:         params.Mode,
		tz:           params.Timezone,
		recipients:   params.Recipients,
		announceDays: params.AnnounceDays,
		classify:     params.Classify,
		errorEmail:   params.ErrorEmail,
	}
}

// Slot identifies one scheduled send, the calendar date plus the mode,
// e.g. "2025-03-10 morning". A digest goes out at most once per slot even
// when the external scheduler fires the run twice.
func Slot(now time.Time, mode string) string {
	return now.Format("2006-01-02") + " " + mode
}

// detectMode maps the hour of day to a digest mode: morning between 06:00
// and 11:59, evening between 18:00 and 22:59, empty outside both windows
func detectMode(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 6 && h < 12:
		return ModeMorning
	case h >= 18 && h < 23:
		return ModeEvening
	default:
		return ""
	}
}

// Run executes a single digest pass and returns its terminal outcome. The
// error is non-nil only for OutcomeFailed. State is persisted after a
// confirmed send and never on a skip, so a failed run leaves the previous
// state intact and the next scheduled run retries from it.
func (r *Runner) Run(ctx context.Context, now time.Time) (Outcome, error) {
	now = now.In(r.tz)

	mode := r.mode
	if mode == "" {
		mode = detectMode(now)
	}
	if mode == "" {
		lgr.Printf("[INFO] %s is outside the morning and evening windows, nothing to send", now.Format("15:04 MST"))
		r.record(ctx, history.Run{Outcome: string(OutcomeSkipped), Detail: "outside send windows"})
		return OutcomeSkipped, nil
	}
	lgr.Printf("[INFO] %s run at %s", mode, now.Format("2006-01-02 3:04 PM MST"))

	st, err := r.store.Load()
	if err != nil {
		lgr.Printf("[WARN] state load failed, continuing with empty seen set: %v", err)
	}
	if st == nil {
		st = state.New()
	}

	slot := Slot(now, mode)
	if st.LastSlot == slot {
		lgr.Printf("[INFO] digest for slot %q already sent, skipping", slot)
		r.record(ctx, history.Run{Slot: slot, Mode: mode, Outcome: string(OutcomeSkipped), Detail: "duplicate slot"})
		return OutcomeSkipped, nil
	}

	snap, err := r.fetch(ctx, now, st.LastRun(mode))
	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		r.notifyFailure(ctx, now, err)
		r.record(ctx, history.Run{Slot: slot, Mode: mode, Outcome: string(OutcomeFailed), Detail: err.Error()})
		return OutcomeFailed, err
	}

	res := digest.Classify(now, snap.assignments, snap.announcements, st, r.classify)

	if mode == ModeEvening && len(res.DueTomorrow) == 0 {
		lgr.Printf("[INFO] nothing unsubmitted due tomorrow, skipping evening alert")
		row := runRow(slot, mode, res)
		row.Outcome, row.Detail = string(OutcomeSkipped), "nothing due tomorrow"
		r.record(ctx, row)
		return OutcomeSkipped, nil
	}

	var html, subject string
	if mode == ModeEvening {
		subject = "Canvas Evening Alert — " + now.Format("Jan 2, 2006")
		html, err = r.renderer.Evening(now, res)
	} else {
		subject = "Canvas Daily Digest — " + now.Format("Jan 2, 2006")
		meta := digest.Meta{Courses: snap.courses, Assignments: len(snap.assignments), FailedCourses: snap.failed}
		html, err = r.renderer.Morning(now, res, meta)
	}
	if err != nil {
		err = fmt.Errorf("render %s digest: %w", mode, err)
		lgr.Printf("[ERROR] %v", err)
		row := runRow(slot, mode, res)
		row.Outcome, row.Detail = string(OutcomeFailed), err.Error()
		r.record(ctx, row)
		return OutcomeFailed, err
	}

	if err = r.sender.Send(ctx, mailer.Email{To: r.recipients, Subject: subject, HTML: html}); err != nil {
		err = fmt.Errorf("send %s digest: %w", mode, err)
		lgr.Printf("[ERROR] %v", err)
		row := runRow(slot, mode, res)
		row.Outcome, row.Detail = string(OutcomeFailed), err.Error()
		r.record(ctx, row)
		return OutcomeFailed, err
	}
	lgr.Printf("[INFO] %s digest sent to %d recipients, %d assignments and %d announcements reported",
		mode, len(r.recipients), res.Total(), len(res.Announcements))

	// the send is confirmed, only now fold the snapshot into the seen set
	for _, a := range snap.assignments {
		st.MarkSeen(a, now)
	}
	st.LastSlot = slot
	st.SetLastRun(mode, now)
	if err := r.store.Save(st); err != nil {
		lgr.Printf("[WARN] state save failed, next run may repeat this digest: %v", err)
	}

	row := runRow(slot, mode, res)
	row.Outcome = string(OutcomeSent)
	r.record(ctx, row)
	return OutcomeSent, nil
}

// snapshot is the per-run pull from the LMS
type snapshot struct {
	courses       int // active courses found
	assignments   []domain.Assignment
	announcements []domain.Announcement
	failed        []string // course labels excluded after fetch errors
}

// fetch pulls courses, per-course assignments and announcements, then merges
// in todo and calendar items the per-course listings missed. A course that
// fails mid-fetch keeps whatever was already collected and is reported in
// snapshot.failed; only the course list itself is fatal.
func (r *Runner) fetch(ctx context.Context, now time.Time, lastRun *time.Time) (*snapshot, error) {
	courses, err := r.lms.ActiveCourses(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("fetch courses: %w", err)
	}
	lgr.Printf("[INFO] found %d active courses", len(courses))

	since := now.Add(-time.Duration(r.announceDays) * 24 * time.Hour)
	if lastRun != nil {
		since = *lastRun
	}

	snap := &snapshot{courses: len(courses)}
	index := map[int64]struct{}{}
	names := map[int64]string{}

	add := func(a domain.Assignment) {
		if _, ok := index[a.ID]; ok {
			return
		}
		index[a.ID] = struct{}{}
		snap.assignments = append(snap.assignments, a)
	}

	for _, c := range courses {
		label := c.Label()
		names[c.ID] = label

		upcoming, err := r.lms.Assignments(ctx, c.ID, canvas.BucketUpcoming)
		if err != nil {
			lgr.Printf("[WARN] course %s: %v", label, err)
			snap.failed = append(snap.failed, label)
			continue
		}
		for _, a := range upcoming {
			a.CourseName = label
			add(a)
		}

		past, err := r.lms.Assignments(ctx, c.ID, canvas.BucketPast)
		if err != nil {
			lgr.Printf("[WARN] course %s: %v", label, err)
			snap.failed = append(snap.failed, label)
			continue
		}
		for _, a := range past {
			a.CourseName = label
			add(a)
		}

		anns, err := r.lms.Announcements(ctx, c.ID, since)
		if err != nil {
			lgr.Printf("[WARN] course %s announcements: %v", label, err)
			snap.failed = append(snap.failed, label)
			continue
		}
		for _, an := range anns {
			an.CourseName = label
			snap.announcements = append(snap.announcements, an)
		}
	}

	// todo and calendar feeds are supplementary, failures are not fatal
	todos, err := r.lms.TodoAssignments(ctx)
	if err != nil {
		lgr.Printf("[WARN] todo fetch failed: %v", err)
	}
	for _, a := range todos {
		a.CourseName = courseLabel(names, a.CourseID)
		add(a)
	}

	events, err := r.lms.UpcomingEvents(ctx)
	if err != nil {
		lgr.Printf("[WARN] calendar fetch failed: %v", err)
	}
	for _, ev := range events {
		if ev.Assignment == nil {
			continue
		}
		a := *ev.Assignment
		a.CourseName = courseLabel(names, a.CourseID)
		add(a)
	}

	lgr.Printf("[INFO] tracking %d assignments, %d announcements", len(snap.assignments), len(snap.announcements))
	return snap, nil
}

// notifyFailure emails a failure notice so a broken scheduled run is not
// silent. Best-effort, a delivery error is only logged.
func (r *Runner) notifyFailure(ctx context.Context, now time.Time, cause error) {
	if !r.errorEmail || len(r.recipients) == 0 {
		return
	}
	html, err := r.renderer.Failure(cause.Error())
	if err != nil {
		lgr.Printf("[WARN] render failure notice: %v", err)
		return
	}
	e := mailer.Email{
		To:      r.recipients,
		Subject: "Canvas Alerts Error — " + now.Format("Jan 2, 2006"),
		HTML:    html,
	}
	if err := r.sender.Send(ctx, e); err != nil {
		lgr.Printf("[WARN] failure notice not delivered: %v", err)
	}
}

// record appends the run to the ledger when one is configured
func (r *Runner) record(ctx context.Context, row history.Run) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, row); err != nil {
		lgr.Printf("[WARN] history record failed: %v", err)
	}
}

// runRow carries the classification counters into a ledger row
func runRow(slot, mode string, res digest.Result) history.Run {
	return history.Run{
		Slot:          slot,
		Mode:          mode,
		Missed:        len(res.Missed),
		DueToday:      len(res.DueToday),
		DueTomorrow:   len(res.DueTomorrow),
		DueSoon:       len(res.DueSoon),
		NewItems:      len(res.New),
		Announcements: len(res.Announcements),
	}
}

// courseLabel resolves a course id against the fetched course list
func courseLabel(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}
