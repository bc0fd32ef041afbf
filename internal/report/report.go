// Package report holds the aggregated result model for a quality-check run
// and renders it as a markdown document.
package report

import (
	"time"

	"github.com/google/uuid"
)

// Detail records the outcome of a single assertion: what was checked, what
// was expected, and what was actually observed.
type Detail struct {
	Target   string `json:"target"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
}

// CheckResult is the outcome of one category checker.
//
// Invariants: 0 <= Passed <= Total, and Total equals the number of declared
// assertions in the category. A category whose data source was unreachable
// still reports every declared assertion (as failed), never fewer.
// CheckResults are never mutated after being handed to the runner.
type CheckResult struct {
	Name     string   `json:"name"`
	Passed   int      `json:"passed"`
	Total    int      `json:"total"`
	Details  []Detail `json:"details,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether every attempted assertion held.
// A category with zero declared assertions is OK.
func (r CheckResult) OK() bool {
	return r.Passed == r.Total
}

// AddPass appends a passing assertion detail.
func (r *CheckResult) AddPass(target, expected, observed string) {
	r.Details = append(r.Details, Detail{Target: target, Passed: true, Expected: expected, Observed: observed})
	r.Passed++
}

// AddFail appends a failing assertion detail.
func (r *CheckResult) AddFail(target, expected, observed string) {
	r.Details = append(r.Details, Detail{Target: target, Passed: false, Expected: expected, Observed: observed})
}

// AddWarning appends a diagnostic note describing why a check could not be
// fully evaluated. Warnings are distinct from assertion failures.
func (r *CheckResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// RunReport is the aggregate result of one quality-check run.
// It is assembled once, rendered once, and persisted as an artifact.
type RunReport struct {
	RunID       string        `json:"run_id"`
	Scenario    string        `json:"scenario"`
	SessionID   string        `json:"session_id"`
	MatterID    string        `json:"matter_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Results     []CheckResult `json:"results"`
}

// New creates a run report with a fresh run identifier.
func New(scenario, sessionID, matterID string, now time.Time) *RunReport {
	return &RunReport{
		RunID:       uuid.NewString(),
		Scenario:    scenario,
		SessionID:   sessionID,
		MatterID:    matterID,
		GeneratedAt: now,
	}
}

// PassRate returns the overall pass rate across all categories as a
// fraction in [0, 1]. Categories with zero assertions contribute nothing;
// a report with zero total assertions has a pass rate of 0, not an error.
func (r *RunReport) PassRate() float64 {
	var passed, total int
	for _, res := range r.Results {
		passed += res.Passed
		total += res.Total
	}
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total)
}
