// Package quality orchestrates a full quality-check run: resolving the run
// context from the session under test, evaluating every expectation category,
// and assembling the final report.
package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/lawseekdog/e2e-tests/internal/checker"
	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// ConfigurationError marks a fatal pre-run failure: the run context could
// not be established, so no checks were attempted. Distinct from check
// failures, which always still produce a report.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}
	return "configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// SessionSource resolves the session under test to its matter and user.
type SessionSource interface {
	Session(ctx context.Context, sessionID string) (source.Session, error)
}

// RunContext identifies the backend state a run verifies.
type RunContext struct {
	SessionID string
	MatterID  string
	UserID    string
}

// ResolveRunContext looks up the session and derives the matter and user the
// checks operate on. The configured user id wins over the session's when both
// are set, matching how test runs impersonate a fixed E2E user.
func ResolveRunContext(ctx context.Context, sessions SessionSource, sessionID, configuredUserID string) (RunContext, error) {
	sess, err := sessions.Session(ctx, sessionID)
	if err != nil {
		return RunContext{}, &ConfigurationError{Reason: "resolve session " + sessionID, Err: err}
	}
	if sess.MatterID == "" {
		return RunContext{}, &ConfigurationError{Reason: "session " + sessionID + " has no matter"}
	}

	userID := configuredUserID
	if userID == "" {
		userID = sess.UserID
	}
	if userID == "" {
		return RunContext{}, &ConfigurationError{Reason: "no user id: set E2E_USER_ID or use a session with a user"}
	}

	return RunContext{SessionID: sessionID, MatterID: sess.MatterID, UserID: userID}, nil
}

// Runner evaluates expectation groups against the source adapters.
type Runner struct {
	Deps     checker.Deps
	Scenario string
	Run      RunContext

	// Timeout bounds the whole run; categories not finished by then are
	// reported as skipped. Zero means no bound.
	Timeout time.Duration

	// now and forCategory are swapped in tests for deterministic reports
	// and fault injection.
	now         func() time.Time
	forCategory func(expectation.Category) (checker.Checker, error)
}

type indexedResult struct {
	index  int
	result report.CheckResult
}

// RunAll evaluates every group concurrently and assembles the run report.
// Results appear in the order the groups were given (canonical category
// order from the parser). The report is always produced: a panicking or
// timed-out checker degrades to a failed category, never aborts the run.
func (r *Runner) RunAll(ctx context.Context, groups []expectation.Group) *report.RunReport {
	now := r.now
	if now == nil {
		now = time.Now
	}
	rep := report.New(r.Scenario, r.Run.SessionID, r.Run.MatterID, now().UTC())

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	results := make(chan indexedResult, len(groups))
	for i, group := range groups {
		go r.runOne(ctx, i, group, results)
	}

	merged := make([]*report.CheckResult, len(groups))
	pending := len(groups)
	for pending > 0 {
		select {
		case ir := <-results:
			res := ir.result
			merged[ir.index] = &res
			pending--
		case <-ctx.Done():
			pending = 0
			drainCompleted(results, merged)
		}
	}

	for i, group := range groups {
		if merged[i] != nil {
			rep.Results = append(rep.Results, *merged[i])
			continue
		}
		skipped := report.CheckResult{
			Name:  group.Category.DisplayName(),
			Total: len(group.Assertions),
		}
		skipped.AddWarning("check skipped: global timeout")
		rep.Results = append(rep.Results, skipped)
	}
	return rep
}

// drainCompleted absorbs results already buffered when the run deadline
// fired. A checker that finished just before the deadline keeps its real
// result; only the genuinely unfinished categories report as skipped.
func drainCompleted(results <-chan indexedResult, merged []*report.CheckResult) {
	for {
		select {
		case ir := <-results:
			res := ir.result
			merged[ir.index] = &res
		default:
			return
		}
	}
}

// runOne evaluates a single group, converting a checker panic into a fully
// failed result so one category cannot take down the run.
func (r *Runner) runOne(ctx context.Context, index int, group expectation.Group, out chan<- indexedResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res := report.CheckResult{
				Name:  group.Category.DisplayName(),
				Total: len(group.Assertions),
			}
			res.AddWarning(fmt.Sprintf("checker panicked: %v", rec))
			out <- indexedResult{index: index, result: res}
		}
	}()

	forCategory := r.forCategory
	if forCategory == nil {
		forCategory = checker.ForCategory
	}
	c, err := forCategory(group.Category)
	if err != nil {
		res := report.CheckResult{Name: group.Category.DisplayName(), Total: len(group.Assertions)}
		res.AddWarning(err.Error())
		out <- indexedResult{index: index, result: res}
		return
	}

	out <- indexedResult{index: index, result: c.Run(ctx, group, r.Deps)}
}
