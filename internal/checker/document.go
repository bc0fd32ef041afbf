package checker

import (
	"context"
	"fmt"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// documentChecker downloads the generated document and verifies its content
// and layout. It checks the first deliverable on the matter; a deliverable
// without a file id means generation never finished, which fails every
// declared assertion.
type documentChecker struct{}

func (documentChecker) Category() expectation.Category {
	return expectation.DocumentQuality
}

func (documentChecker) Run(ctx context.Context, group expectation.Group, deps Deps) report.CheckResult {
	res := newResult(group)
	if group.FormatNotApplicable {
		res.AddWarning("format checks marked not applicable for this scenario")
	}
	if len(group.Assertions) == 0 {
		return res
	}

	doc, err := fetchDocument(ctx, deps)
	if err != nil {
		failAll(&res, group, "document readable", "document unavailable", err.Error())
		return res
	}

	text := normalize(doc.Text())
	for _, a := range group.Assertions {
		evalDocument(&res, a, doc, text)
	}
	return res
}

// fetchDocument locates the matter's first deliverable, downloads it and
// extracts its text and paragraph alignments.
func fetchDocument(ctx context.Context, deps Deps) (source.DocumentText, error) {
	deliverables, err := deps.Documents.ListDeliverables(ctx, deps.MatterID)
	if err != nil {
		return source.DocumentText{}, err
	}
	if len(deliverables) == 0 {
		return source.DocumentText{}, fmt.Errorf("no deliverables for matter %s", deps.MatterID)
	}

	d := deliverables[0]
	if d.FileID == "" {
		return source.DocumentText{}, fmt.Errorf("deliverable %q has no file id (status %s)", d.OutputKey, d.Status)
	}
	deps.logger().Debug("checking deliverable", "output_key", d.OutputKey, "file_id", d.FileID)

	data, err := deps.Documents.DownloadFile(ctx, d.FileID)
	if err != nil {
		return source.DocumentText{}, fmt.Errorf("download %s: %w", d.FileID, err)
	}

	doc, err := source.ExtractDocx(data)
	if err != nil {
		return source.DocumentText{}, fmt.Errorf("extract %s: %w", d.FileID, err)
	}
	return doc, nil
}

func evalDocument(res *report.CheckResult, a expectation.Assertion, doc source.DocumentText, text string) {
	switch a.Kind {
	case expectation.Containment:
		if missing := missingPatterns(text, a.Patterns); len(missing) > 0 {
			res.AddFail(a.Target(),
				"document contains "+describePatterns(a.Patterns),
				fmt.Sprintf("missing %v", missing))
			return
		}
		res.AddPass(a.Target(), "document contains "+describePatterns(a.Patterns), "present")

	case expectation.Exclusion:
		if present := presentPatterns(text, a.Patterns); len(present) > 0 {
			res.AddFail(a.Target(),
				"document free of "+describePatterns(a.Patterns),
				fmt.Sprintf("found %v", present))
			return
		}
		res.AddPass(a.Target(), "document free of "+describePatterns(a.Patterns), "absent")

	case expectation.Equality:
		observed := formatObserved(a.FormatCheck, doc)
		if observed != a.Equals {
			res.AddFail(a.FormatCheck, "alignment "+a.Equals, "alignment "+orUnset(observed))
			return
		}
		res.AddPass(a.FormatCheck, "alignment "+a.Equals, "alignment "+observed)

	default:
		res.AddFail(a.Target(), "containment, exclusion or equality predicate", a.Kind.String())
	}
}

// formatObserved resolves a named format check to the document's observed
// alignment value.
func formatObserved(check string, doc source.DocumentText) string {
	switch check {
	case "centered_title":
		return doc.TitleAlignment()
	case "right_aligned_signature":
		return doc.SignatureAlignment()
	default:
		return ""
	}
}

func orUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}
