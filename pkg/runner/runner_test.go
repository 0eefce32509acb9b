package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srbpsu18/canvas-alerts/pkg/canvas"
	"github.com/srbpsu18/canvas-alerts/pkg/domain"
	"github.com/srbpsu18/canvas-alerts/pkg/history"
	"github.com/srbpsu18/canvas-alerts/pkg/mailer"
	"github.com/srbpsu18/canvas-alerts/pkg/runner/mocks"
	"github.com/srbpsu18/canvas-alerts/pkg/state"
)

var est = time.FixedZone("EST", -5*60*60)

func tp(t time.Time) *time.Time { return &t }

// fixture returns an LMS mock with two courses: CMPSC 311 carries one
// assignment due tomorrow and one missed, MATH 230 one due today. The todo
// feed adds a due-soon item plus a duplicate of the tomorrow one, the
// calendar feed adds an item from a course outside the active list.
func fixture(now time.Time) *mocks.LMSMock {
	a1 := domain.Assignment{ID: 1, CourseID: 101, Name: "Lab 5", DueAt: tp(now.Add(24 * time.Hour)), HTMLURL: "https://canvas.test/1"}
	a2 := domain.Assignment{ID: 2, CourseID: 101, Name: "Homework 3", DueAt: tp(now.Add(-24 * time.Hour)), HTMLURL: "https://canvas.test/2"}
	a3 := domain.Assignment{ID: 3, CourseID: 102, Name: "Problem Set 7", DueAt: tp(now.Add(6 * time.Hour)), HTMLURL: "https://canvas.test/3"}
	a4 := domain.Assignment{ID: 4, CourseID: 102, Name: "Quiz 4", DueAt: tp(now.Add(48 * time.Hour)), HTMLURL: "https://canvas.test/4"}
	a5 := domain.Assignment{ID: 5, CourseID: 999, Name: "Reading Response", DueAt: tp(now.Add(50 * time.Hour)), HTMLURL: "https://canvas.test/5"}

	return &mocks.LMSMock{
		ActiveCoursesFunc: func(ctx context.Context, now time.Time) ([]domain.Course, error) {
			return []domain.Course{{ID: 101, Code: "CMPSC 311"}, {ID: 102, Code: "MATH 230"}}, nil
		},
		AssignmentsFunc: func(ctx context.Context, courseID int64, bucket string) ([]domain.Assignment, error) {
			switch {
			case courseID == 101 && bucket == canvas.BucketUpcoming:
				return []domain.Assignment{a1}, nil
			case courseID == 101 && bucket == canvas.BucketPast:
				return []domain.Assignment{a2}, nil
			case courseID == 102 && bucket == canvas.BucketUpcoming:
				return []domain.Assignment{a3}, nil
			}
			return nil, nil
		},
		AnnouncementsFunc: func(ctx context.Context, courseID int64, since time.Time) ([]domain.Announcement, error) {
			if courseID == 101 {
				return []domain.Announcement{{ID: 9, Title: "Exam moved", Message: "<p>Now on Friday</p>",
					HTMLURL: "https://canvas.test/ann/9", PostedAt: now.Add(-2 * time.Hour)}}, nil
			}
			return nil, nil
		},
		TodoAssignmentsFunc: func(ctx context.Context) ([]domain.Assignment, error) {
			return []domain.Assignment{a4, a1}, nil // a1 is already known, must not double up
		},
		UpcomingEventsFunc: func(ctx context.Context) ([]domain.Event, error) {
			return []domain.Event{
				{ID: 70, Title: "Office hours"}, // no assignment attached, ignored
				{ID: 71, Title: "Reading Response", Assignment: &a5},
			}, nil
		},
	}
}

func memStore(st *state.State, saved **state.State) *mocks.StoreMock {
	return &mocks.StoreMock{
		LoadFunc: func() (*state.State, error) { return st, nil },
		SaveFunc: func(s *state.State) error { *saved = s; return nil },
	}
}

func okSender(got *[]mailer.Email) *mocks.SenderMock {
	return &mocks.SenderMock{
		SendFunc: func(ctx context.Context, e mailer.Email) error {
			*got = append(*got, e)
			return nil
		},
	}
}

func TestRunner_MorningSent(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)
	lms := fixture(now)

	prior := state.New()
	prior.MarkSeen(domain.Assignment{ID: 77, Name: "Essay 1"}, now.AddDate(0, 0, -7))

	var saved *state.State
	var sent []mailer.Email
	store := memStore(prior, &saved)
	sender := okSender(&sent)
	rec := &mocks.RecorderMock{RecordFunc: func(ctx context.Context, r history.Run) error { return nil }}

	r := New(Params{
		LMS: lms, Store: store, Sender: sender, Recorder: rec,
		Timezone: est, Recipients: []string{"student@example.com", "parent@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)

	require.Len(t, sent, 1)
	assert.Equal(t, []string{"student@example.com", "parent@example.com"}, sent[0].To)
	assert.Equal(t, "Canvas Daily Digest — Mar 10, 2025", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "CMPSC 311")
	assert.Contains(t, sent[0].HTML, "Exam moved")
	assert.Contains(t, sent[0].HTML, "Unknown") // calendar item from a course outside the active list

	// every snapshot assignment lands in the seen set once the send is confirmed
	require.NotNil(t, saved)
	for id := int64(1); id <= 5; id++ {
		assert.True(t, saved.Seen(id), "assignment %d should be seen", id)
	}
	assert.True(t, saved.Seen(77), "previously seen assignments survive the merge")
	assert.Equal(t, "2025-03-10 morning", saved.LastSlot)
	require.NotNil(t, saved.LastRun(ModeMorning))
	assert.Nil(t, saved.LastRun(ModeEvening))

	require.Len(t, rec.RecordCalls(), 1)
	row := rec.RecordCalls()[0].R
	assert.Equal(t, "sent", row.Outcome)
	assert.Equal(t, "2025-03-10 morning", row.Slot)
	assert.Equal(t, 1, row.Missed)
	assert.Equal(t, 1, row.DueToday)
	assert.Equal(t, 1, row.DueTomorrow, "todo duplicate must not double the bucket")
	assert.Equal(t, 2, row.DueSoon)
	assert.Equal(t, 5, row.NewItems)
	assert.Equal(t, 1, row.Announcements)
}

func TestRunner_SlotGuard(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)
	lms := fixture(now)

	st := state.New()
	st.LastSlot = "2025-03-10 morning"

	var saved *state.State
	var sent []mailer.Email
	rec := &mocks.RecorderMock{RecordFunc: func(ctx context.Context, r history.Run) error { return nil }}

	r := New(Params{
		LMS: lms, Store: memStore(st, &saved), Sender: okSender(&sent), Recorder: rec,
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	assert.Empty(t, lms.ActiveCoursesCalls(), "duplicate slot must not hit the API")
	assert.Empty(t, sent)
	assert.Nil(t, saved, "duplicate slot must not rewrite state")

	require.Len(t, rec.RecordCalls(), 1)
	assert.Equal(t, "duplicate slot", rec.RecordCalls()[0].R.Detail)
}

func TestRunner_EveningSent(t *testing.T) {
	now := time.Date(2025, 3, 10, 19, 30, 0, 0, est)
	lms := fixture(now) // a1 lands 24h out, within tomorrow

	var saved *state.State
	var sent []mailer.Email

	r := New(Params{
		LMS: lms, Store: memStore(state.New(), &saved), Sender: okSender(&sent),
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)

	require.Len(t, sent, 1)
	assert.Equal(t, "Canvas Evening Alert — Mar 10, 2025", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "DUE TOMORROW (unsubmitted)")
	assert.Contains(t, sent[0].HTML, "Lab 5")
	assert.NotContains(t, sent[0].HTML, "Homework 3", "missed items stay out of the evening alert")

	// the evening send still folds the whole snapshot into the seen set,
	// so the next morning tags nothing stale as new
	require.NotNil(t, saved)
	assert.True(t, saved.Seen(2), "unrendered assignments are still marked seen")
	assert.Equal(t, "2025-03-10 evening", saved.LastSlot)
	require.NotNil(t, saved.LastRun(ModeEvening))
	assert.Nil(t, saved.LastRun(ModeMorning))
}

func TestRunner_EveningSkipsWhenNothingDueTomorrow(t *testing.T) {
	now := time.Date(2025, 3, 10, 19, 30, 0, 0, est)

	lms := fixture(now)
	lms.AssignmentsFunc = func(ctx context.Context, courseID int64, bucket string) ([]domain.Assignment, error) {
		if courseID == 101 && bucket == canvas.BucketPast {
			return []domain.Assignment{{ID: 2, CourseID: 101, Name: "Homework 3", DueAt: tp(now.Add(-24 * time.Hour))}}, nil
		}
		return nil, nil
	}
	lms.TodoAssignmentsFunc = func(ctx context.Context) ([]domain.Assignment, error) { return nil, nil }
	lms.UpcomingEventsFunc = func(ctx context.Context) ([]domain.Event, error) { return nil, nil }

	var saved *state.State
	var sent []mailer.Email
	rec := &mocks.RecorderMock{RecordFunc: func(ctx context.Context, r history.Run) error { return nil }}

	r := New(Params{
		LMS: lms, Store: memStore(state.New(), &saved), Sender: okSender(&sent), Recorder: rec,
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	assert.Empty(t, sent, "nothing due tomorrow sends nothing")
	assert.Nil(t, saved, "a skipped evening leaves state untouched")

	require.Len(t, rec.RecordCalls(), 1)
	row := rec.RecordCalls()[0].R
	assert.Equal(t, "skipped", row.Outcome)
	assert.Equal(t, "nothing due tomorrow", row.Detail)
	assert.Equal(t, 1, row.Missed, "counters still describe what was found")
}

func TestRunner_SendFailureKeepsState(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)
	lms := fixture(now)

	var saved *state.State
	sender := &mocks.SenderMock{
		SendFunc: func(ctx context.Context, e mailer.Email) error { return errors.New("smtp auth for x: 535") },
	}
	rec := &mocks.RecorderMock{RecordFunc: func(ctx context.Context, r history.Run) error { return nil }}

	r := New(Params{
		LMS: lms, Store: memStore(state.New(), &saved), Sender: sender, Recorder: rec,
		Timezone: est, Recipients: []string{"student@example.com"}, ErrorEmail: true,
	})

	outcome, err := r.Run(context.Background(), now)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "send morning digest")

	assert.Nil(t, saved, "a failed send must not advance the seen set")
	assert.Len(t, sender.SendCalls(), 1, "no failure notice over the same broken transport")

	require.Len(t, rec.RecordCalls(), 1)
	row := rec.RecordCalls()[0].R
	assert.Equal(t, "failed", row.Outcome)
	assert.Contains(t, row.Detail, "535")
}

func TestRunner_CourseListFatal(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)

	newLMS := func() *mocks.LMSMock {
		return &mocks.LMSMock{
			ActiveCoursesFunc: func(ctx context.Context, now time.Time) ([]domain.Course, error) {
				return nil, errors.New("unexpected status code: 401")
			},
		}
	}

	t.Run("failure notice emailed", func(t *testing.T) {
		var saved *state.State
		var sent []mailer.Email
		rec := &mocks.RecorderMock{RecordFunc: func(ctx context.Context, r history.Run) error { return nil }}

		r := New(Params{
			LMS: newLMS(), Store: memStore(state.New(), &saved), Sender: okSender(&sent), Recorder: rec,
			Timezone: est, Recipients: []string{"student@example.com"}, ErrorEmail: true,
		})

		outcome, err := r.Run(context.Background(), now)
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, outcome)
		assert.Contains(t, err.Error(), "fetch courses")

		require.Len(t, sent, 1)
		assert.Equal(t, "Canvas Alerts Error — Mar 10, 2025", sent[0].Subject)
		assert.Contains(t, sent[0].HTML, "Canvas Alerts Failed")
		assert.Contains(t, sent[0].HTML, "401")

		assert.Nil(t, saved)
		require.Len(t, rec.RecordCalls(), 1)
		assert.Equal(t, "failed", rec.RecordCalls()[0].R.Outcome)
	})

	t.Run("failure notice suppressed", func(t *testing.T) {
		var saved *state.State
		var sent []mailer.Email

		r := New(Params{
			LMS: newLMS(), Store: memStore(state.New(), &saved), Sender: okSender(&sent),
			Timezone: est, Recipients: []string{"student@example.com"}, ErrorEmail: false,
		})

		outcome, err := r.Run(context.Background(), now)
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, outcome)
		assert.Empty(t, sent)
	})
}

func TestRunner_DegradedCourseStillSends(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)

	lms := fixture(now)
	inner := lms.AssignmentsFunc
	lms.AssignmentsFunc = func(ctx context.Context, courseID int64, bucket string) ([]domain.Assignment, error) {
		if courseID == 102 {
			return nil, errors.New("unexpected status code: 503")
		}
		return inner(ctx, courseID, bucket)
	}

	var saved *state.State
	var sent []mailer.Email

	r := New(Params{
		LMS: lms, Store: memStore(state.New(), &saved), Sender: okSender(&sent),
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)

	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, "Failed to fetch data for: MATH 230")
	assert.Contains(t, sent[0].HTML, "Lab 5", "healthy courses still make the digest")
	assert.NotContains(t, sent[0].HTML, "Problem Set 7")
}

func TestRunner_StateLoadErrorProceeds(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)

	var saved *state.State
	var sent []mailer.Email
	store := &mocks.StoreMock{
		LoadFunc: func() (*state.State, error) { return nil, errors.New("parse state: unexpected end of JSON input") },
		SaveFunc: func(s *state.State) error { saved = s; return nil },
	}

	r := New(Params{
		LMS: fixture(now), Store: store, Sender: okSender(&sent),
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err, "a corrupt state file degrades to an empty seen set")
	assert.Equal(t, OutcomeSent, outcome)
	require.NotNil(t, saved)
	assert.True(t, saved.Seen(1))
}

func TestRunner_StateSaveErrorStillSent(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)

	var sent []mailer.Email
	store := &mocks.StoreMock{
		LoadFunc: func() (*state.State, error) { return state.New(), nil },
		SaveFunc: func(s *state.State) error { return errors.New("open state.json: permission denied") },
	}

	r := New(Params{
		LMS: fixture(now), Store: store, Sender: okSender(&sent),
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err, "the digest went out, a save failure is not a run failure")
	assert.Equal(t, OutcomeSent, outcome)
	assert.Len(t, sent, 1)
}

func TestRunner_OutsideWindows(t *testing.T) {
	now := time.Date(2025, 3, 10, 13, 0, 0, 0, est)

	store := &mocks.StoreMock{}
	rec := &mocks.RecorderMock{RecordFunc: func(ctx context.Context, r history.Run) error { return nil }}

	r := New(Params{
		LMS: &mocks.LMSMock{}, Store: store, Sender: &mocks.SenderMock{}, Recorder: rec,
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, store.LoadCalls())

	require.Len(t, rec.RecordCalls(), 1)
	assert.Equal(t, "outside send windows", rec.RecordCalls()[0].R.Detail)
}

func TestRunner_ModeOverrideBeatsClock(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est) // morning hours

	var saved *state.State
	var sent []mailer.Email

	r := New(Params{
		LMS: fixture(now), Store: memStore(state.New(), &saved), Sender: okSender(&sent),
		Timezone: est, Recipients: []string{"student@example.com"}, Mode: ModeEvening,
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "Canvas Evening Alert")
	assert.Equal(t, "2025-03-10 evening", saved.LastSlot)
}

func TestRunner_AnnouncementCutoff(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)

	t.Run("first run falls back to lookback days", func(t *testing.T) {
		lms := fixture(now)
		var saved *state.State
		var sent []mailer.Email

		r := New(Params{
			LMS: lms, Store: memStore(state.New(), &saved), Sender: okSender(&sent),
			Timezone: est, Recipients: []string{"student@example.com"}, AnnounceDays: 2,
		})

		_, err := r.Run(context.Background(), now)
		require.NoError(t, err)
		require.NotEmpty(t, lms.AnnouncementsCalls())
		assert.Equal(t, now.Add(-48*time.Hour), lms.AnnouncementsCalls()[0].Since)
	})

	t.Run("later runs resume from the previous one", func(t *testing.T) {
		lms := fixture(now)
		lastRun := now.Add(-26 * time.Hour)
		st := state.New()
		st.SetLastRun(ModeMorning, lastRun)

		var saved *state.State
		var sent []mailer.Email

		r := New(Params{
			LMS: lms, Store: memStore(st, &saved), Sender: okSender(&sent),
			Timezone: est, Recipients: []string{"student@example.com"},
		})

		_, err := r.Run(context.Background(), now)
		require.NoError(t, err)
		require.NotEmpty(t, lms.AnnouncementsCalls())
		assert.Equal(t, lastRun, lms.AnnouncementsCalls()[0].Since)
	})
}

func TestRunner_NoRecorder(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, est)

	var saved *state.State
	var sent []mailer.Email

	r := New(Params{
		LMS: fixture(now), Store: memStore(state.New(), &saved), Sender: okSender(&sent),
		Timezone: est, Recipients: []string{"student@example.com"},
	})

	outcome, err := r.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
}

func TestDetectMode(t *testing.T) {
	tbl := []struct {
		hour int
		want string
	}{
		{0, ""}, {5, ""},
		{6, ModeMorning}, {9, ModeMorning}, {11, ModeMorning},
		{12, ""}, {17, ""},
		{18, ModeEvening}, {20, ModeEvening}, {22, ModeEvening},
		{23, ""},
	}
	for _, tt := range tbl {
		now := time.Date(2025, 3, 10, tt.hour, 15, 0, 0, est)
		assert.Equal(t, tt.want, detectMode(now), "hour %d", tt.hour)
	}
}

func TestSlot(t *testing.T) {
	now := time.Date(2025, 3, 10, 19, 30, 0, 0, est)
	assert.Equal(t, "2025-03-10 evening", Slot(now, ModeEvening))
	assert.Equal(t, "2025-03-10 morning", Slot(now, ModeMorning))
}
