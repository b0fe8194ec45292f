package model

import "time"

// Job status constants.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Translation service constants.
const (
	ServiceGoogle = "google"
	ServiceBing   = "bing"
)

// Request defaults applied when a field is omitted.
const (
	DefaultService = ServiceGoogle
	DefaultLangIn  = "en"
	DefaultLangOut = "zh"
)

// SupportedServices lists the translation services accepted by POST /translate.
var SupportedServices = []string{ServiceGoogle, ServiceBing}

// SupportedService reports whether name is an accepted translation service.
func SupportedService(name string) bool {
	for _, s := range SupportedServices {
		if s == name {
			return true
		}
	}
	return false
}

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether status is a final job status.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// TranslateRequest is a validated translation job request.
type TranslateRequest struct {
	Inputs         []string `json:"inputs"`
	SourceFilename string   `json:"source_filename,omitempty"`
	Service        string   `json:"service"`
	LangIn         string   `json:"lang_in"`
	LangOut        string   `json:"lang_out"`
}

// SourcePath returns the primary input document.
func (r TranslateRequest) SourcePath() string {
	if len(r.Inputs) == 0 {
		return ""
	}
	return r.Inputs[0]
}

// JobRecord is the persisted history entry for a translation job.
type JobRecord struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Service        string     `json:"service"`
	SourcePath     string     `json:"source_path"`
	SourceFilename string     `json:"source_filename,omitempty"`
	LangIn         string     `json:"lang_in"`
	LangOut        string     `json:"lang_out"`
	Filename       string     `json:"filename,omitempty"`
	Error          string     `json:"error,omitempty"`
	DurationMS     *int       `json:"duration_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// EventRecord is a single persisted job event.
type EventRecord struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Seq       int       `json:"seq"`
	Event     Event     `json:"event"`
	CreatedAt time.Time `json:"created_at"`
}
