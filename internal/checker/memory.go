package checker

import (
	"context"
	"fmt"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// memoryRetrievalChecker verifies that facts surfaced during the
// conversation carry the expected content. It checks the most recently
// surfaced fact per entity key.
type memoryRetrievalChecker struct{}

func (memoryRetrievalChecker) Category() expectation.Category {
	return expectation.MemoryRetrieval
}

func (memoryRetrievalChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)
	if len(group.Assertions) == 0 {
		return res
	}

	facts, err := deps.Facts.ListCaseFacts(ctx, deps.UserID, deps.MatterID, 300)
	if err != nil {
		failAll(&res, group, "fact retrievable", "source unavailable", err.Error())
		return res
	}

	for _, a := range group.Assertions {
		evalFactContent(&res, a, facts)
	}
	return res
}

// memoryStorageChecker verifies that facts were durably persisted with the
// declared scope and content. Retrieval and storage are distinct failure
// modes: a fact may surface in conversation yet never be stored, or vice
// versa, so the two categories report independently.
type memoryStorageChecker struct{}

func (memoryStorageChecker) Category() expectation.Category {
	return expectation.MemoryStorage
}

func (memoryStorageChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)
	if len(group.Assertions) == 0 {
		return res
	}

	facts, err := deps.Facts.ListCaseFacts(ctx, deps.UserID, deps.MatterID, 300)
	if err != nil {
		failAll(&res, group, "fact stored", "source unavailable", err.Error())
		return res
	}

	for _, a := range group.Assertions {
		evalStoredFact(&res, a, facts)
	}
	return res
}

// mostRecentFact returns the first fact with the entity key; the facts
// route orders items most recent first.
func mostRecentFact(facts []source.Fact, entityKey string) (source.Fact, bool) {
	for _, f := range facts {
		if normalize(f.EntityKey) == entityKey {
			return f, true
		}
	}
	return source.Fact{}, false
}

func evalFactContent(res *report.CheckResult, a expectation.Assertion, facts []source.Fact) {
	fact, found := mostRecentFact(facts, a.EntityKey)
	if !found {
		res.AddFail(a.EntityKey, "fact exists", "no fact with this entity key")
		return
	}

	switch a.Kind {
	case expectation.Existence:
		res.AddPass(a.EntityKey, "fact exists", "fact found")
	case expectation.Containment:
		content := normalize(fact.Content)
		if missing := missingPatterns(content, a.Patterns); len(missing) > 0 {
			res.AddFail(a.EntityKey,
				"content contains "+describePatterns(a.Patterns),
				fmt.Sprintf("content missing %v", missing))
			return
		}
		res.AddPass(a.EntityKey, "content contains "+describePatterns(a.Patterns), "content matched")
	default:
		res.AddFail(a.EntityKey, "containment or existence predicate", a.Kind.String())
	}
}

func evalStoredFact(res *report.CheckResult, a expectation.Assertion, facts []source.Fact) {
	fact, found := mostRecentFact(facts, a.EntityKey)
	if !found {
		res.AddFail(a.EntityKey, "fact stored", "not stored")
		return
	}

	// Scope and content are verified together: a stored fact in the wrong
	// scope would leak across cases.
	if a.Scope != "" && normalize(fact.Scope) != a.Scope {
		res.AddFail(a.EntityKey,
			fmt.Sprintf("scope %q", a.Scope),
			fmt.Sprintf("scope %q", normalize(fact.Scope)))
		return
	}

	if a.Kind == expectation.Containment {
		content := normalize(fact.Content)
		if missing := missingPatterns(content, a.Patterns); len(missing) > 0 {
			res.AddFail(a.EntityKey,
				"stored content contains "+describePatterns(a.Patterns),
				fmt.Sprintf("content missing %v", missing))
			return
		}
	}

	res.AddPass(a.EntityKey, "fact stored with declared scope and content", "stored, scope="+normalize(fact.Scope))
}
