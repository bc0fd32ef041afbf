package checker

import (
	"context"
	"fmt"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// knowledgeChecker issues each declared search and asserts hit count plus
// keyword coverage. Every assertion is evaluated against a live query; a
// category that cannot be evaluated reports warning-bearing failures, never
// a silent pass.
type knowledgeChecker struct{}

func (knowledgeChecker) Category() expectation.Category {
	return expectation.KnowledgeHits
}

const knowledgeTopK = 10

func (knowledgeChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)

	for _, a := range group.Assertions {
		results, err := deps.Knowledge.SearchKnowledge(ctx, a.Query, knowledgeTopK)
		if err != nil {
			// A transport failure degrades this assertion only; the
			// remaining queries are still attempted.
			res.AddFail(a.Target(), countExpected(a)+" results", "search unavailable")
			res.AddWarning(fmt.Sprintf("knowledge search %q: %v", a.Query, err))
			continue
		}

		if !countSatisfied(a, len(results)) {
			res.AddFail(a.Target(),
				countExpected(a)+" results",
				fmt.Sprintf("%d results", len(results)))
			continue
		}

		if len(a.Patterns) > 0 && !anyResultMatchesAll(results, a.Patterns) {
			res.AddFail(a.Target(),
				"a result containing "+describePatterns(a.Patterns),
				fmt.Sprintf("%d results, none containing every keyword", len(results)))
			continue
		}

		res.AddPass(a.Target(), countExpected(a)+" results", fmt.Sprintf("%d results", len(results)))
	}
	return res
}

// anyResultMatchesAll reports whether at least one search result contains
// every declared keyword.
func anyResultMatchesAll(results []source.KnowledgeResult, patterns []expectation.Pattern) bool {
	for _, r := range results {
		if len(missingPatterns(normalize(r.Content), patterns)) == 0 {
			return true
		}
	}
	return false
}
