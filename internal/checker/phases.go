package checker

import (
	"context"
	"fmt"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// phasesChecker verifies workflow phase checkpoints: each declared phase
// must have reached its expected status, and its checkpoint must carry
// every required output key.
type phasesChecker struct{}

func (phasesChecker) Category() expectation.Category {
	return expectation.PhaseGates
}

func (phasesChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)
	if len(group.Assertions) == 0 {
		return res
	}

	timeline, err := deps.Phases.PhaseTimeline(ctx, deps.MatterID)
	if err != nil {
		failAll(&res, group, "checkpoint reached", "phase source unavailable", err.Error())
		return res
	}

	for _, a := range group.Assertions {
		cp, found := findCheckpoint(timeline, a.Phase)
		if !found {
			res.AddFail(a.Phase, "checkpoint with status "+a.Equals, "no checkpoint recorded")
			continue
		}

		status := normalize(cp.Status)
		if a.Equals != "" && status != a.Equals {
			res.AddFail(a.Phase, "status "+a.Equals, "status "+status)
			continue
		}

		if missing := missingOutputs(cp, a.RequiredOutputs); len(missing) > 0 {
			res.AddFail(a.Phase,
				fmt.Sprintf("outputs %v present", a.RequiredOutputs),
				fmt.Sprintf("missing outputs %v", missing))
			continue
		}

		res.AddPass(a.Phase, "checkpoint with status "+a.Equals, "status "+status)
	}
	return res
}

// findCheckpoint returns the latest checkpoint for a phase; the timeline is
// ordered most recent first.
func findCheckpoint(timeline []source.Checkpoint, phase string) (source.Checkpoint, bool) {
	for _, cp := range timeline {
		if normalize(cp.Phase) == phase {
			return cp, true
		}
	}
	return source.Checkpoint{}, false
}

// missingOutputs returns the required output keys absent from the
// checkpoint's outputs.
func missingOutputs(cp source.Checkpoint, required []string) []string {
	have := make(map[string]struct{}, len(cp.Outputs))
	for _, key := range cp.Outputs {
		have[normalize(key)] = struct{}{}
	}
	var missing []string
	for _, key := range required {
		if _, ok := have[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
