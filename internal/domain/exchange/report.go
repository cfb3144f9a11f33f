package exchange

import "strings"

// MaxStoredIssues caps the per-record error list kept in report details.
// ErrorCount keeps counting past the cap.
const MaxStoredIssues = 200

// EntityStats counts record outcomes for one entity kind.
type EntityStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Aliased   int `json:"aliased"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Add folds o into s.
func (s *EntityStats) Add(o EntityStats) {
	s.Created += o.Created
	s.Updated += o.Updated
	s.Aliased += o.Aliased
	s.Unchanged += o.Unchanged
	s.Skipped += o.Skipped
	s.Errors += o.Errors
}

// RecordIssue is one per-record failure kept for operators.
type RecordIssue struct {
	Pass       string `json:"pass"`
	Line       int    `json:"line,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Checkpoint is the last committed progress marker of a run.
type Checkpoint struct {
	CompletedPasses []string `json:"completed_passes,omitempty"`
	Pass            string   `json:"pass,omitempty"`
	File            string   `json:"file,omitempty"`
	Offset          int      `json:"offset"`
}

// PassDone reports whether pass already finished in an earlier attempt.
func (c *Checkpoint) PassDone(pass string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.CompletedPasses {
		if p == pass {
			return true
		}
	}
	return false
}

// ReportDetails is the structured report stored as JSON on the session.
type ReportDetails struct {
	Entities       map[string]*EntityStats `json:"entities"`
	ProcessedItems int                     `json:"processed_items"`
	TotalItems     int                     `json:"total_items"`
	ErrorCount     int                     `json:"error_count"`
	Errors         []RecordIssue           `json:"errors,omitempty"`
	Notes          []string                `json:"notes,omitempty"`
	Checkpoint     *Checkpoint             `json:"checkpoint,omitempty"`
}

// NewReportDetails returns empty details.
func NewReportDetails() ReportDetails {
	return ReportDetails{Entities: make(map[string]*EntityStats)}
}

// Stats returns the counters for kind, creating them on first use.
func (d *ReportDetails) Stats(kind string) *EntityStats {
	if d.Entities == nil {
		d.Entities = make(map[string]*EntityStats)
	}
	s, ok := d.Entities[kind]
	if !ok {
		s = &EntityStats{}
		d.Entities[kind] = s
	}
	return s
}

// Totals sums the counters of every kind.
func (d *ReportDetails) Totals() EntityStats {
	var total EntityStats
	for _, s := range d.Entities {
		total.Add(*s)
	}
	return total
}

// AddIssue records a per-record failure.
func (d *ReportDetails) AddIssue(issue RecordIssue) {
	d.ErrorCount++
	if len(d.Errors) < MaxStoredIssues {
		d.Errors = append(d.Errors, issue)
	}
}

// AddNote records an informational message once.
func (d *ReportDetails) AddNote(note string) {
	note = strings.TrimSpace(note)
	for _, n := range d.Notes {
		if n == note {
			return
		}
	}
	d.Notes = append(d.Notes, note)
}
