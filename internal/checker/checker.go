// Package checker implements the eight category evaluators. Each checker
// consumes one expectation group plus the relevant source adapters and
// produces a report.CheckResult.
//
// Shared semantics across all checkers:
//
//   - Containment/exclusion comparisons operate on a whitespace-trimmed,
//     case-preserving view of the observed value; patterns compiled as
//     regular expressions match as such, plain substrings match literally.
//   - Threshold comparisons apply the parsed bound to the observed count;
//     a missing observed value counts as 0.
//   - Equality comparisons require an exact match after trimming.
//   - Existence assertions pass iff the target was observed at all.
//
// A transport-layer failure degrades only the assertions that depended on
// it: those are marked failed and a warning carrying the failure detail is
// appended; the checker keeps evaluating the rest of its category. Expected
// absence (not found, empty, unknown table) is never a warning by itself.
// The one exception is an unknown table, which warns so schema drift between
// scenario and database stays visible.
package checker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// Adapter interfaces are defined here, by the consumer. *source.Client and
// *source.RecordStore satisfy them; tests substitute fakes.

// FactSource looks up memory-service facts for a user/case scope.
type FactSource interface {
	ListCaseFacts(ctx context.Context, userID, caseID string, limit int) ([]source.Fact, error)
}

// TraceSource queries execution traces for a matter.
type TraceSource interface {
	ListTraces(ctx context.Context, matterID string, limit int) ([]source.TraceItem, error)
}

// PhaseSource fetches workflow phase checkpoints for a matter.
type PhaseSource interface {
	PhaseTimeline(ctx context.Context, matterID string) ([]source.Checkpoint, error)
}

// DocumentSource locates and fetches generated document artifacts.
type DocumentSource interface {
	ListDeliverables(ctx context.Context, matterID string) ([]source.Deliverable, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// KnowledgeSource issues knowledge-base searches.
type KnowledgeSource interface {
	SearchKnowledge(ctx context.Context, query string, topK int) ([]source.KnowledgeResult, error)
}

// RecordSource counts matter records by table and filter.
type RecordSource interface {
	CountRecords(ctx context.Context, table, matterID string, conds map[string]expectation.Condition) (source.RecordOutcome, error)
}

// Deps bundles the adapters and run context the checkers read from.
// All fields are read-only during a run; checkers never mutate target state.
type Deps struct {
	Facts     FactSource
	Records   RecordSource
	Traces    TraceSource
	Phases    PhaseSource
	Documents DocumentSource
	Knowledge KnowledgeSource

	UserID   string
	MatterID string
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Checker evaluates one expectation category.
type Checker interface {
	Category() expectation.Category
	Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult
}

// ForCategory returns the checker for a category. The predicate set and the
// category set are both closed; an unlisted category is a programming error.
func ForCategory(cat expectation.Category) (Checker, error) {
	switch cat {
	case expectation.MemoryRetrieval:
		return memoryRetrievalChecker{}, nil
	case expectation.MemoryStorage:
		return memoryStorageChecker{}, nil
	case expectation.KnowledgeHits:
		return knowledgeChecker{}, nil
	case expectation.MatterRecords:
		return recordsChecker{}, nil
	case expectation.SkillsExecuted:
		return skillsChecker{}, nil
	case expectation.TraceExpectations:
		return tracesChecker{}, nil
	case expectation.PhaseGates:
		return phasesChecker{}, nil
	case expectation.DocumentQuality:
		return documentChecker{}, nil
	default:
		return nil, fmt.Errorf("unknown category %q", cat)
	}
}

// newResult seeds a CheckResult for a group: total is fixed to the number
// of declared assertions up front so no assertion is ever dropped, whatever
// happens to the data source.
func newResult(group expectation.Group) report.CheckResult {
	return report.CheckResult{
		Name:  group.Category.DisplayName(),
		Total: len(group.Assertions),
	}
}

// failAll marks every assertion in the group failed with the same observed
// outcome and appends one warning. Used when the category's single upstream
// fetch could not be served.
func failAll(res *report.CheckResult, group expectation.Group, expected, observed, warning string) {
	for _, a := range group.Assertions {
		res.AddFail(a.Target(), expected, observed)
	}
	res.AddWarning(warning)
}

// normalize is the string view predicates operate on: whitespace-trimmed,
// case-preserving.
func normalize(s string) string { return strings.TrimSpace(s) }

// missingPatterns returns the patterns that do not occur in the value.
func missingPatterns(value string, patterns []expectation.Pattern) []string {
	var missing []string
	for _, p := range patterns {
		if !p.Match(value) {
			missing = append(missing, p.Raw)
		}
	}
	return missing
}

// presentPatterns returns the patterns that do occur in the value.
func presentPatterns(value string, patterns []expectation.Pattern) []string {
	var present []string
	for _, p := range patterns {
		if p.Match(value) {
			present = append(present, p.Raw)
		}
	}
	return present
}

func describePatterns(patterns []expectation.Pattern) string {
	raws := make([]string, len(patterns))
	for i, p := range patterns {
		raws[i] = fmt.Sprintf("%q", p.Raw)
	}
	return "[" + strings.Join(raws, ", ") + "]"
}

// countExpected renders the expected side of a threshold or existence
// count assertion.
func countExpected(a expectation.Assertion) string {
	if a.Bound != nil {
		return a.Bound.String()
	}
	return "> 0"
}

// countSatisfied applies the assertion's bound to an observed count,
// falling back to existence (> 0) when no bound was declared.
func countSatisfied(a expectation.Assertion, observed int) bool {
	if a.Bound != nil {
		return a.Bound.Satisfied(observed)
	}
	return observed > 0
}
