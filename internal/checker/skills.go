package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// skillsChecker verifies that each declared skill ran to its expected
// terminal status. A skill that never executed is a plain failure: an
// unexecuted skill is exactly the regression this category exists to catch,
// so it never degrades to a warning.
type skillsChecker struct{}

func (skillsChecker) Category() expectation.Category {
	return expectation.SkillsExecuted
}

func (skillsChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)
	if len(group.Assertions) == 0 {
		return res
	}

	traces, err := deps.Traces.ListTraces(ctx, deps.MatterID, 500)
	if err != nil {
		failAll(&res, group, "skill executed", "trace source unavailable", err.Error())
		return res
	}

	for _, a := range group.Assertions {
		item, found := findSkillTrace(traces, a.SkillID)
		if !found {
			res.AddFail(a.SkillID, "executed with status "+a.Equals, "not executed")
			continue
		}
		status := normalize(item.Status)
		if status != a.Equals {
			res.AddFail(a.SkillID, "status "+a.Equals, "status "+status)
			continue
		}
		res.AddPass(a.SkillID, "executed with status "+a.Equals, fmt.Sprintf("executed as %s", item.NodeID))
	}
	return res
}

// findSkillTrace matches a skill id against trace node ids. Skill nodes are
// recorded either bare or with a "skill:" prefix.
func findSkillTrace(traces []source.TraceItem, skillID string) (source.TraceItem, bool) {
	for _, t := range traces {
		nodeID := normalize(t.NodeID)
		if nodeID == skillID || strings.TrimPrefix(nodeID, "skill:") == skillID {
			return t, true
		}
	}
	return source.TraceItem{}, false
}
