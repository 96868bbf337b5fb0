// Package scraper defines core types shared across the task, dispatch, and extraction subsystems.
package scraper

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// DateLayout is the wire format for JobPost.DatePosted.
const DateLayout = "2006-01-02"

// TaskStatus represents the lifecycle state of a scrape task.
type TaskStatus string

// Task status values kept in the task store.
const (
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Options is the opaque, adapter-specific bag carried by a request.
type Options map[string]any

// Request is a validated scrape request.
type Request struct {
	Sites             []Site            `json:"site_type"`
	SearchTerm        string            `json:"search_term,omitempty"`
	Location          string            `json:"location,omitempty"`
	IsRemote          bool              `json:"is_remote"`
	ResultsWanted     int               `json:"results_wanted"`
	JobType           JobType           `json:"job_type,omitempty"`
	Country           Country           `json:"country,omitempty"`
	DescriptionFormat DescriptionFormat `json:"description_format"`
	RequestTimeout    int               `json:"request_timeout"`
	Options           Options           `json:"options,omitempty"`
}

// Timeout converts RequestTimeout into a duration.
func (r Request) Timeout() time.Duration {
	return time.Duration(r.RequestTimeout) * time.Second
}

// Clone returns a copy that shares no slices or maps with r.
func (r Request) Clone() Request {
	cp := r
	cp.Sites = slices.Clone(r.Sites)
	if r.Options != nil {
		cp.Options = maps.Clone(r.Options)
	}
	return cp
}

// Location is where a posting is based.
type Location struct {
	Country Country `json:"country,omitempty"`
	City    string  `json:"city,omitempty"`
	State   string  `json:"state,omitempty"`
}

// CompensationInterval is the pay period of a Compensation.
type CompensationInterval string

// Supported pay periods.
const (
	IntervalYearly  CompensationInterval = "yearly"
	IntervalMonthly CompensationInterval = "monthly"
	IntervalWeekly  CompensationInterval = "weekly"
	IntervalDaily   CompensationInterval = "daily"
	IntervalHourly  CompensationInterval = "hourly"
)

// Compensation is a salary range.
type Compensation struct {
	Interval  CompensationInterval `json:"interval,omitempty"`
	MinAmount float64              `json:"min_amount"`
	MaxAmount float64              `json:"max_amount"`
	Currency  string               `json:"currency"`
}

// JobPost is one normalized job posting.
type JobPost struct {
	Site         Site          `json:"site"`
	Title        string        `json:"title"`
	CompanyName  string        `json:"company_name,omitempty"`
	JobURL       string        `json:"job_url"`
	JobURLDirect string        `json:"job_url_direct,omitempty"`
	Location     *Location     `json:"location,omitempty"`
	Description  string        `json:"description,omitempty"`
	Compensation *Compensation `json:"compensation,omitempty"`
	DatePosted   string        `json:"date_posted,omitempty"`
}

// JobResponse is what an adapter returns for one site.
type JobResponse struct {
	Jobs []JobPost `json:"jobs"`
}

// Task is the record kept for each submitted request.
type Task struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	Request   Request    `json:"request"`
	Jobs      []JobPost  `json:"jobs,omitempty"`
	Error     string     `json:"error,omitempty"`
	Submitted time.Time  `json:"submitted_at"`
	Finished  *time.Time `json:"finished_at,omitempty"`
}

// View projects the task into the shape returned by the status endpoint.
func (t Task) View() TaskView {
	return TaskView{Status: t.Status, Jobs: t.Jobs, Error: t.Error}
}

// TaskView is the client-facing projection of a Task.
type TaskView struct {
	Status TaskStatus
	Jobs   []JobPost
	Error  string
}

// MarshalJSON emits only the fields meaningful for the current status.
func (v TaskView) MarshalJSON() ([]byte, error) {
	switch v.Status {
	case TaskStatusCompleted:
		jobs := v.Jobs
		if jobs == nil {
			jobs = []JobPost{}
		}
		return json.Marshal(struct {
			Status TaskStatus `json:"status"`
			Count  int        `json:"count"`
			Data   []JobPost  `json:"data"`
		}{v.Status, len(jobs), jobs})
	case TaskStatusFailed:
		return json.Marshal(struct {
			Status TaskStatus `json:"status"`
			Error  string     `json:"error"`
		}{v.Status, v.Error})
	default:
		return json.Marshal(struct {
			Status TaskStatus `json:"status"`
		}{v.Status})
	}
}

// QueueItem wraps a task ready to run.
type QueueItem struct {
	TaskID    string
	Request   Request
	Submitted int64
}

// SessionConfig configures one browser session.
type SessionConfig struct {
	UserAgent      string
	Proxy          string
	BlockResources bool
	Timeout        time.Duration
}
