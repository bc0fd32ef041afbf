package checker

import (
	"context"
	"fmt"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// recordsChecker counts rows in the relational store per declared table and
// filter. Unknown tables fail the assertion and additionally warn, so schema
// drift between scenario and database is visible in the report.
type recordsChecker struct{}

func (recordsChecker) Category() expectation.Category {
	return expectation.MatterRecords
}

func (recordsChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)

	for _, a := range group.Assertions {
		outcome, err := deps.Records.CountRecords(ctx, a.Table, deps.MatterID, a.Conditions)
		if err != nil {
			res.AddFail(a.Target(), countExpected(a)+" rows", "store unavailable")
			res.AddWarning(fmt.Sprintf("count %s: %v", a.Table, err))
			continue
		}

		switch outcome.Kind {
		case source.TableUnknown:
			res.AddFail(a.Target(), countExpected(a)+" rows", "table not in whitelist")
			res.AddWarning("unknown table: " + a.Table)
		case source.RecordsEmpty, source.RecordsFound:
			deps.logger().Debug("counted records", "table", a.Table, "rows", outcome.Count)
			observed := fmt.Sprintf("%d rows", outcome.Count)
			if countSatisfied(a, outcome.Count) {
				res.AddPass(a.Target(), countExpected(a)+" rows", observed)
			} else {
				res.AddFail(a.Target(), countExpected(a)+" rows", observed)
			}
		}
	}
	return res
}
