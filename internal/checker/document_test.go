package checker

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()

	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func complaintDocx(t *testing.T) []byte {
	t.Helper()
	return buildDocx(t, `
		<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>民事起诉状</w:t></w:r></w:p>
		<w:p><w:r><w:t>原告：张三E2E01</w:t></w:r></w:p>
		<w:p><w:r><w:t>被告：李四</w:t></w:r></w:p>
		<w:p><w:pPr><w:jc w:val="right"/></w:pPr><w:r><w:t>具状人：张三E2E01</w:t></w:r></w:p>`)
}

func documentGroup(t *testing.T) expectation.Group {
	t.Helper()
	return expectation.Group{
		Category: expectation.DocumentQuality,
		Assertions: []expectation.Assertion{
			{Kind: expectation.Containment, Patterns: []expectation.Pattern{mustPattern(t, "民事起诉状")}},
			{Kind: expectation.Containment, Patterns: []expectation.Pattern{mustPattern(t, "张三E2E01")}},
			{Kind: expectation.Exclusion, Patterns: []expectation.Pattern{mustPattern(t, `\{\{.*?\}\}`)}},
			{Kind: expectation.Equality, FormatCheck: "centered_title", Equals: "center"},
			{Kind: expectation.Equality, FormatCheck: "right_aligned_signature", Equals: "right"},
		},
	}
}

func TestDocumentQuality(t *testing.T) {
	deps := Deps{Documents: fakeDocuments{
		deliverables: []source.Deliverable{{OutputKey: "complaint", FileID: "file-1", Status: "ready"}},
		data:         complaintDocx(t),
	}}

	res := documentChecker{}.Run(context.Background(), documentGroup(t), deps)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 5, res.Passed)
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)
}

func TestDocumentQuality_TemplatePlaceholderLeaks(t *testing.T) {
	data := buildDocx(t, `
		<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>民事起诉状</w:t></w:r></w:p>
		<w:p><w:r><w:t>原告：张三E2E01，向{{court_name}}提起诉讼</w:t></w:r></w:p>
		<w:p><w:pPr><w:jc w:val="right"/></w:pPr><w:r><w:t>具状人：张三E2E01</w:t></w:r></w:p>`)
	deps := Deps{Documents: fakeDocuments{
		deliverables: []source.Deliverable{{OutputKey: "complaint", FileID: "file-1"}},
		data:         data,
	}}

	res := documentChecker{}.Run(context.Background(), documentGroup(t), deps)

	assert.Equal(t, 4, res.Passed)
	require.Len(t, res.Details, 5)
	assert.False(t, res.Details[2].Passed, "an unrendered {{placeholder}} must fail the exclusion")
}

func TestDocumentQuality_WrongAlignment(t *testing.T) {
	data := buildDocx(t, `
		<w:p><w:r><w:t>民事起诉状</w:t></w:r></w:p>
		<w:p><w:r><w:t>原告：张三E2E01</w:t></w:r></w:p>
		<w:p><w:r><w:t>具状人：张三E2E01</w:t></w:r></w:p>`)
	deps := Deps{Documents: fakeDocuments{
		deliverables: []source.Deliverable{{OutputKey: "complaint", FileID: "file-1"}},
		data:         data,
	}}

	res := documentChecker{}.Run(context.Background(), documentGroup(t), deps)

	require.Len(t, res.Details, 5)
	assert.False(t, res.Details[3].Passed)
	assert.Equal(t, "alignment unset", res.Details[3].Observed)
	assert.False(t, res.Details[4].Passed)
}

func TestDocumentQuality_MissingFileID(t *testing.T) {
	deps := Deps{Documents: fakeDocuments{
		deliverables: []source.Deliverable{{OutputKey: "complaint", Status: "generating"}},
	}}

	res := documentChecker{}.Run(context.Background(), documentGroup(t), deps)

	assert.Equal(t, 0, res.Passed)
	assert.Len(t, res.Details, 5)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no file id")
}

func TestDocumentQuality_NoDeliverables(t *testing.T) {
	deps := Deps{Documents: fakeDocuments{}}

	res := documentChecker{}.Run(context.Background(), documentGroup(t), deps)

	assert.Equal(t, 0, res.Passed)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no deliverables")
}

func TestDocumentQuality_FormatNotApplicableNote(t *testing.T) {
	group := expectation.Group{
		Category:            expectation.DocumentQuality,
		FormatNotApplicable: true,
		Assertions: []expectation.Assertion{
			{Kind: expectation.Containment, Patterns: []expectation.Pattern{mustPattern(t, "民事起诉状")}},
		},
	}
	deps := Deps{Documents: fakeDocuments{
		deliverables: []source.Deliverable{{OutputKey: "complaint", FileID: "file-1"}},
		data:         complaintDocx(t),
	}}

	res := documentChecker{}.Run(context.Background(), group, deps)

	assert.True(t, res.OK())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "not applicable")
}
