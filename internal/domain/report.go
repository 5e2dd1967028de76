package domain

import "time"

// Score is one metric value for one candidate dataset.
type Score struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ReportSection groups the scores of a single metric, in candidate order.
type ReportSection struct {
	Metric string  `json:"metric"`
	Scores []Score `json:"scores"`
}

// Report is the outcome of one benchmark run.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Reference   string          `json:"reference"`
	Unit        string          `json:"unit"`
	Sections    []ReportSection `json:"sections"`
}

// NewReport stamps an empty report with the current clock time.
func NewReport(reference, unit string) Report {
	return Report{
		GeneratedAt: clock.Now().UTC(),
		Reference:   reference,
		Unit:        unit,
	}
}
