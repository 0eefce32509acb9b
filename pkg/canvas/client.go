// Package canvas implements the Canvas LMS REST client used to build a
// digest: active courses, per-course assignments and announcements, plus
// the user's todo items and upcoming calendar events. All list endpoints
// follow Link-header pagination and every page request is retried once
// before the run gives up.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/srbpsu18/canvas-alerts/pkg/domain"
)

// assignment listing buckets understood by the Canvas API
const (
	BucketUpcoming = "upcoming"
	BucketPast     = "past"
)

const perPage = "100"

// Client talks to the Canvas REST API on behalf of a single user
type Client struct {
	baseURL       string
	token         string
	client        *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// Config holds client configuration
type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// NewClient creates a Canvas API client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		client:        &http.Client{Timeout: cfg.Timeout},
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
	}
}

// ActiveCourses returns the courses with an active enrollment that are in
// session at the given time: started (or no start date) and not yet ended.
func (c *Client) ActiveCourses(ctx context.Context, now time.Time) ([]domain.Course, error) {
	q := url.Values{
		"enrollment_state": {"active"},
		"per_page":         {perPage},
	}
	raw, err := pages[courseJSON](ctx, c, c.endpoint("/courses", q))
	if err != nil {
		return nil, fmt.Errorf("fetch courses: %w", err)
	}

	courses := make([]domain.Course, 0, len(raw))
	for _, cj := range raw {
		if cj.StartAt != nil && cj.StartAt.After(now) {
			continue
		}
		if cj.EndAt != nil && cj.EndAt.Before(now) {
			continue
		}
		courses = append(courses, domain.Course{
			ID:      cj.ID,
			Name:    cj.Name,
			Code:    cj.CourseCode,
			StartAt: cj.StartAt,
			EndAt:   cj.EndAt,
		})
	}
	return courses, nil
}

// Assignments returns one bucket of assignments for a course, with
// submission state included. CourseName is left for the caller to fill,
// the API does not return it here.
func (c *Client) Assignments(ctx context.Context, courseID int64, bucket string) ([]domain.Assignment, error) {
	q := url.Values{
		"per_page":  {perPage},
		"include[]": {"submission"},
		"bucket":    {bucket},
	}
	path := fmt.Sprintf("/courses/%d/assignments", courseID)
	raw, err := pages[assignmentJSON](ctx, c, c.endpoint(path, q))
	if err != nil {
		return nil, fmt.Errorf("fetch %s assignments for course %d: %w", bucket, courseID, err)
	}

	assignments := make([]domain.Assignment, 0, len(raw))
	for _, aj := range raw {
		assignments = append(assignments, aj.toDomain(courseID))
	}
	return assignments, nil
}

// Announcements returns course announcements posted after the cutoff
func (c *Client) Announcements(ctx context.Context, courseID int64, since time.Time) ([]domain.Announcement, error) {
	q := url.Values{
		"only_announcements": {"true"},
		"per_page":           {perPage},
		"order_by":           {"recent_activity"},
	}
	path := fmt.Sprintf("/courses/%d/discussion_topics", courseID)
	raw, err := pages[announcementJSON](ctx, c, c.endpoint(path, q))
	if err != nil {
		return nil, fmt.Errorf("fetch announcements for course %d: %w", courseID, err)
	}

	anns := make([]domain.Announcement, 0, len(raw))
	for _, aj := range raw {
		if aj.PostedAt == nil || !aj.PostedAt.After(since) {
			continue
		}
		anns = append(anns, domain.Announcement{
			ID:       aj.ID,
			Title:    aj.Title,
			Message:  aj.Message,
			HTMLURL:  aj.HTMLURL,
			PostedAt: *aj.PostedAt,
		})
	}
	return anns, nil
}

// TodoAssignments returns assignments attached to the user's todo list.
// Canvas surfaces items here that per-course listings occasionally miss.
func (c *Client) TodoAssignments(ctx context.Context) ([]domain.Assignment, error) {
	q := url.Values{"per_page": {perPage}}
	raw, err := pages[todoJSON](ctx, c, c.endpoint("/users/self/todo", q))
	if err != nil {
		return nil, fmt.Errorf("fetch todo items: %w", err)
	}

	var assignments []domain.Assignment
	for _, tj := range raw {
		if tj.Assignment == nil {
			continue
		}
		a := tj.Assignment.toDomain(tj.CourseID)
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// UpcomingEvents returns the user's upcoming calendar events. Events backed
// by an assignment carry it so the caller can merge it into the pool.
func (c *Client) UpcomingEvents(ctx context.Context) ([]domain.Event, error) {
	q := url.Values{"per_page": {perPage}}
	raw, err := pages[eventJSON](ctx, c, c.endpoint("/users/self/upcoming_events", q))
	if err != nil {
		return nil, fmt.Errorf("fetch upcoming events: %w", err)
	}

	events := make([]domain.Event, 0, len(raw))
	for _, ej := range raw {
		ev := domain.Event{
			ID:      ej.ID,
			Title:   ej.Title,
			StartAt: ej.StartAt,
		}
		if ej.Assignment != nil {
			a := ej.Assignment.toDomain(ej.Assignment.CourseID)
			ev.Assignment = &a
		}
		events = append(events, ev)
	}
	return events, nil
}

// endpoint builds a full request URL from a path and query values
func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// pages follows rel="next" Link headers, accumulating every page of T
func pages[T any](ctx context.Context, c *Client, u string) ([]T, error) {
	var all []T
	for u != "" {
		var page []T
		next, err := c.get(ctx, u, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		// pagination params are baked into the Link URL
		u = next
	}
	return all, nil
}

// get performs one authenticated GET with retry, decodes the body into out
// and returns the rel="next" URL if the response is paginated
func (c *Client) get(ctx context.Context, u string, out any) (next string, err error) {
	var body []byte

	retrier := repeater.NewFixed(c.retryAttempts, c.retryDelay)
	err = retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("canvas request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		body = b
		next = nextLink(resp.Header.Get("Link"))
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return next, nil
}

// nextLink extracts the rel="next" target from an RFC 5988 Link header,
// empty when the current page is the last one
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

// wire shapes, converted to domain types at the boundary

type courseJSON struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	CourseCode string     `json:"course_code"`
	StartAt    *time.Time `json:"start_at"`
	EndAt      *time.Time `json:"end_at"`
}

type submissionJSON struct {
	WorkflowState string `json:"workflow_state"`
}

type assignmentJSON struct {
	ID              int64           `json:"id"`
	CourseID        int64           `json:"course_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DueAt           *time.Time      `json:"due_at"`
	LockAt          *time.Time      `json:"lock_at"`
	PointsPossible  float64         `json:"points_possible"`
	SubmissionTypes []string        `json:"submission_types"`
	HTMLURL         string          `json:"html_url"`
	Submission      *submissionJSON `json:"submission"`
}

func (aj assignmentJSON) toDomain(courseID int64) domain.Assignment {
	if aj.CourseID != 0 {
		courseID = aj.CourseID
	}
	return domain.Assignment{
		ID:              aj.ID,
		CourseID:        courseID,
		Name:            aj.Name,
		Description:     aj.Description,
		DueAt:           aj.DueAt,
		LockAt:          aj.LockAt,
		PointsPossible:  aj.PointsPossible,
		SubmissionTypes: aj.SubmissionTypes,
		HTMLURL:         aj.HTMLURL,
		Submitted:       aj.Submission.submitted(),
	}
}

// submitted reports whether the submission reached a terminal state
func (sj *submissionJSON) submitted() bool {
	if sj == nil {
		return false
	}
	return sj.WorkflowState == "submitted" || sj.WorkflowState == "graded"
}

type announcementJSON struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
	HTMLURL  string     `json:"html_url"`
	PostedAt *time.Time `json:"posted_at"`
}

type todoJSON struct {
	CourseID   int64           `json:"course_id"`
	Assignment *assignmentJSON `json:"assignment"`
}

type eventJSON struct {
	ID         int64           `json:"id"`
	Title      string          `json:"title"`
	StartAt    *time.Time      `json:"start_at"`
	Assignment *assignmentJSON `json:"assignment"`
}
