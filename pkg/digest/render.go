package digest

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/srbpsu18/canvas-alerts/pkg/domain"
)

//go:embed templates
var templatesFS embed.FS

var tmpl = template.Must(template.ParseFS(templatesFS, "templates/*.gohtml"))

// section accent colors, one per urgency level
const (
	colorMissed       = "#dc3545"
	colorToday        = "#dc3545"
	colorTomorrow     = "#e67e22"
	colorSoon         = "#3498db"
	colorNew          = "#27ae60"
	colorAnnouncement = "#6c757d"
	colorHighStakes   = "#8b0000"
	colorDone         = "#555"
)

const (
	descLimit         = 150
	announcementLimit = 200
)

// Renderer builds self-contained HTML documents from classified results.
// Output is deterministic for identical input, timestamps are shown in the
// renderer's location.
type Renderer struct {
	loc        *time.Location
	highStakes float64
	soonDays   int
}

// NewRenderer creates a renderer presenting times in loc. Assignments worth
// highStakes points or more get a HIGH STAKES badge.
func NewRenderer(loc *time.Location, highStakes float64, soonDays int) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	if highStakes <= 0 {
		highStakes = DefaultHighStakes
	}
	if soonDays <= 0 {
		soonDays = DefaultSoonDays
	}
	return &Renderer{loc: loc, highStakes: highStakes, soonDays: soonDays}
}

// Meta carries run-level counters for the morning header
type Meta struct {
	Courses       int      // active courses fetched
	Assignments   int      // assignments tracked across all courses
	FailedCourses []string // courses excluded after fetch failures
}

type badgeView struct{ Text, Color string }

type cardView struct {
	Badges []badgeView
	Name   string
	Meta   string
	Lock   string
	Desc   string
	URL    string
}

type sectionView struct {
	Title string
	Color string
	Cards []cardView
}

type announcementView struct {
	Title string
	Meta  string
	Body  string
	URL   string
}

type morningPage struct {
	Date          string
	Courses       int
	Assignments   int
	Warning       string
	AllClear      bool
	Sections      []sectionView
	Announcements []announcementView
	AnnColor      string
}

type eveningPage struct {
	Date    string
	Section sectionView
}

type failurePage struct{ Message string }

// Morning renders the full daily digest: every urgency section, new
// assignments, announcements and the fetch warning banner. An empty result
// with no failed courses renders the all-clear document instead.
func (r *Renderer) Morning(now time.Time, res Result, meta Meta) (string, error) {
	now = now.In(r.loc)
	page := morningPage{
		Date:        now.Format("Jan 2, 2006"),
		Courses:     meta.Courses,
		Assignments: meta.Assignments,
		AllClear:    res.Empty() && len(meta.FailedCourses) == 0,
		AnnColor:    colorAnnouncement,
	}
	if len(meta.FailedCourses) > 0 {
		page.Warning = strings.Join(meta.FailedCourses, ", ")
	}

	for _, def := range []struct {
		title string
		color string
		items []domain.Assignment
		isNew bool
	}{
		{"⚠️ MISSED", colorMissed, res.Missed, false},
		{"DUE TODAY", colorToday, res.DueToday, false},
		{"DUE TOMORROW", colorTomorrow, res.DueTomorrow, false},
		{fmt.Sprintf("DUE IN 2-%d DAYS", r.soonDays), colorSoon, res.DueSoon, false},
		{"NEW ASSIGNMENTS", colorNew, res.New, true},
	} {
		if len(def.items) == 0 {
			continue
		}
		sec := sectionView{Title: def.title, Color: def.color}
		for _, a := range def.items {
			sec.Cards = append(sec.Cards, r.card(a, def.isNew, true))
		}
		page.Sections = append(page.Sections, sec)
	}

	for _, an := range res.Announcements {
		page.Announcements = append(page.Announcements, announcementView{
			Title: orUntitled(an.Title),
			Meta:  an.CourseName + " · " + an.PostedAt.In(r.loc).Format("Jan 2, 3:04 PM MST"),
			Body:  truncate(stripHTML(an.Message), announcementLimit),
			URL:   an.HTMLURL,
		})
	}

	return render("morning.gohtml", page)
}

// Evening renders the pre-alert listing tomorrow's unsubmitted work. The
// caller is expected to skip the send when the bucket is empty.
func (r *Renderer) Evening(now time.Time, res Result) (string, error) {
	now = now.In(r.loc)
	sec := sectionView{Title: "DUE TOMORROW (unsubmitted)", Color: colorTomorrow}
	for _, a := range res.DueTomorrow {
		sec.Cards = append(sec.Cards, r.card(a, false, false))
	}
	return render("evening.gohtml", eveningPage{Date: now.Format("Jan 2, 2006"), Section: sec})
}

// Failure renders the error notification sent when a run cannot complete
func (r *Renderer) Failure(message string) (string, error) {
	return render("failure.gohtml", failurePage{Message: message})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) card(a domain.Assignment, markNew, showDone bool) cardView {
	v := cardView{Name: orUntitled(a.Name), URL: a.HTMLURL}

	if a.PointsPossible > 0 && a.PointsPossible >= r.highStakes {
		v.Badges = append(v.Badges, badgeView{"HIGH STAKES", colorHighStakes})
	}
	if markNew {
		v.Badges = append(v.Badges, badgeView{"NEW", colorNew})
	}
	if showDone && a.Submitted {
		v.Badges = append(v.Badges, badgeView{"✓ DONE", colorDone})
	}

	meta := a.CourseName
	if deadline := a.Deadline(); deadline != nil {
		meta += " · Due " + r.fmtTime(*deadline)
	} else {
		meta += " · No due date"
	}
	if a.PointsPossible > 0 {
		meta += fmt.Sprintf(" · %d pts", int(a.PointsPossible))
	}
	if label := submissionLabel(a.SubmissionTypes); label != "" {
		meta += " · " + label
	}
	v.Meta = meta

	if a.LockAt != nil && a.DueAt != nil && !a.LockAt.Equal(*a.DueAt) {
		v.Lock = "Locks: " + r.fmtTime(*a.LockAt)
	}
	v.Desc = truncate(stripHTML(a.Description), descLimit)
	return v
}

func (r *Renderer) fmtTime(t time.Time) string {
	return t.In(r.loc).Format("Mon 3:04 PM MST")
}

func orUntitled(s string) string {
	if s == "" {
		return "Untitled"
	}
	return s
}

var (
	stripPolicy = bluemonday.StrictPolicy()
	spacesRe    = regexp.MustCompile(`\s+`)
)

// stripHTML flattens rich Canvas markup to a single line of plain text
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	clean := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.TrimSpace(spacesRe.ReplaceAllString(clean, " "))
}

// truncate cuts s to at most n runes, appending an ellipsis when shortened
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRight(string(runes[:n]), " ") + "..."
}

// submissionLabel renders Canvas submission types the way the web UI does,
// "online_upload" becomes "Online Upload"
func submissionLabel(types []string) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		if t == "none" {
			continue
		}
		words := strings.Fields(strings.ReplaceAll(t, "_", " "))
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		parts = append(parts, strings.Join(words, " "))
	}
	return strings.Join(parts, ", ")
}
