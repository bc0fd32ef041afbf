package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
)

// tracesChecker asserts span occurrence counts over the execution trace.
// Span names match as substrings of the recorded node ids, so one
// expectation can cover a family of related spans.
type tracesChecker struct{}

func (tracesChecker) Category() expectation.Category {
	return expectation.TraceExpectations
}

func (tracesChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)
	if len(group.Assertions) == 0 {
		return res
	}

	traces, err := deps.Traces.ListTraces(ctx, deps.MatterID, 500)
	if err != nil {
		failAll(&res, group, "span recorded", "trace source unavailable", err.Error())
		return res
	}

	for _, a := range group.Assertions {
		count := 0
		for _, t := range traces {
			if strings.Contains(t.NodeID, a.SpanName) {
				count++
			}
		}
		observed := fmt.Sprintf("%d spans", count)
		if countSatisfied(a, count) {
			res.AddPass(a.SpanName, countExpected(a)+" spans", observed)
		} else {
			res.AddFail(a.SpanName, countExpected(a)+" spans", observed)
		}
	}
	return res
}
