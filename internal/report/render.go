package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Status glyphs used in the summary table and detail sections.
const (
	glyphPass = "✅"
	glyphFail = "❌"
)

// Render writes the report as a markdown document with a fixed section
// order: header, summary table, passed items, failed items, warnings.
// Rendering is a pure function of the RunReport value; rendering the same
// report twice produces byte-identical output.
func Render(w io.Writer, r *RunReport) error {
	var b strings.Builder

	b.WriteString("## E2E Quality Check Report\n\n")

	b.WriteString("### Run\n\n")
	fmt.Fprintf(&b, "- **Scenario**: %s\n", r.Scenario)
	fmt.Fprintf(&b, "- **Session ID**: %s\n", r.SessionID)
	fmt.Fprintf(&b, "- **Matter ID**: %s\n", r.MatterID)
	fmt.Fprintf(&b, "- **Run ID**: %s\n", r.RunID)
	fmt.Fprintf(&b, "- **Generated At**: %s\n\n", r.GeneratedAt.UTC().Format(time.RFC3339))

	b.WriteString("### Summary\n\n")
	b.WriteString("| Check | Status | Passed/Total |\n")
	b.WriteString("|-------|--------|--------------|\n")
	for _, res := range r.Results {
		glyph := glyphPass
		if !res.OK() {
			glyph = glyphFail
		}
		fmt.Fprintf(&b, "| %s | %s | %d/%d |\n", res.Name, glyph, res.Passed, res.Total)
	}
	fmt.Fprintf(&b, "\n**Overall pass rate**: %.1f%%\n\n", r.PassRate()*100)

	b.WriteString("### Passed Items\n\n")
	anyPassed := false
	for _, res := range r.Results {
		var lines []string
		for _, d := range res.Details {
			if d.Passed {
				lines = append(lines, fmt.Sprintf("- ✓ %s: %s", d.Target, d.Observed))
			}
		}
		if len(lines) == 0 {
			continue
		}
		anyPassed = true
		fmt.Fprintf(&b, "**%s**:\n%s\n\n", res.Name, strings.Join(lines, "\n"))
	}
	if !anyPassed {
		b.WriteString("None.\n\n")
	}

	b.WriteString("### Failed Items\n\n")
	anyFailed := false
	for _, res := range r.Results {
		var lines []string
		for _, d := range res.Details {
			if !d.Passed {
				lines = append(lines, fmt.Sprintf("- ✗ %s: expected %s, observed %s", d.Target, d.Expected, d.Observed))
			}
		}
		if len(lines) == 0 {
			continue
		}
		anyFailed = true
		fmt.Fprintf(&b, "**%s**:\n%s\n\n", res.Name, strings.Join(lines, "\n"))
	}
	if !anyFailed {
		b.WriteString("None.\n\n")
	}

	b.WriteString("### Warnings\n\n")
	anyWarnings := false
	for _, res := range r.Results {
		if len(res.Warnings) == 0 {
			continue
		}
		anyWarnings = true
		var lines []string
		for _, warn := range res.Warnings {
			lines = append(lines, "- ⚠ "+warn)
		}
		fmt.Fprintf(&b, "**%s**:\n%s\n\n", res.Name, strings.Join(lines, "\n"))
	}
	if !anyWarnings {
		b.WriteString("None.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
