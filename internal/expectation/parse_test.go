package expectation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullBlock = `
memory:
  retrieval:
    - entity_key: party:plaintiff:primary
      must_include: ["张三E2E01"]
  storage:
    - entity_key: party:plaintiff:primary
      scope: case
      must_include: ["原告"]
knowledge:
  hits:
    - query: 交通事故 赔偿
      count: ">= 1"
      must_include: ["赔偿"]
matter:
  records:
    - table: matter_evidence_list_items
      count: ">= 3"
    - table: matters
      conditions:
        service_type: litigation
skills:
  executed:
    - skill_id: litigation-intake
      status: completed
    - skill_id: evidence-review
trace:
  expectations:
    - span_name: run_skill
      count: ">= 5"
phase_gates:
  checkpoints:
    - phase: intake
      status: completed
      required_outputs: [case_profile]
document:
  quality:
    format:
      not_applicable: true
    content:
      must_include: ["民事起诉状"]
      must_not_include: ['\{\{.*?\}\}']
`

func TestExtractBlock(t *testing.T) {
	md := []byte("# Scenario\n\nSome prose.\n\n```yaml\nmemory:\n  retrieval: []\n```\n\nMore prose.\n")
	block, err := ExtractBlock(md)
	require.NoError(t, err)
	assert.Equal(t, "memory:\n  retrieval: []", string(block))
}

func TestExtractBlock_Missing(t *testing.T) {
	_, err := ExtractBlock([]byte("# Scenario\n\nNo expectations here.\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_FullBlock(t *testing.T) {
	groups, err := Parse([]byte(fullBlock))
	require.NoError(t, err)
	require.Len(t, groups, len(CanonicalOrder))

	// Canonical order is preserved regardless of block order.
	for i, cat := range CanonicalOrder {
		assert.Equal(t, cat, groups[i].Category)
	}

	byCat := make(map[Category]Group)
	for _, g := range groups {
		byCat[g.Category] = g
	}

	retrieval := byCat[MemoryRetrieval]
	require.Len(t, retrieval.Assertions, 1)
	assert.Equal(t, Containment, retrieval.Assertions[0].Kind)
	assert.Equal(t, "party:plaintiff:primary", retrieval.Assertions[0].EntityKey)
	assert.False(t, retrieval.Assertions[0].Patterns[0].IsRegexp())

	storage := byCat[MemoryStorage]
	require.Len(t, storage.Assertions, 1)
	assert.Equal(t, "case", storage.Assertions[0].Scope)

	hits := byCat[KnowledgeHits]
	require.Len(t, hits.Assertions, 1)
	require.NotNil(t, hits.Assertions[0].Bound)
	assert.Equal(t, Bound{Op: OpGE, N: 1}, *hits.Assertions[0].Bound)

	records := byCat[MatterRecords]
	require.Len(t, records.Assertions, 2)
	assert.Equal(t, Threshold, records.Assertions[0].Kind)
	assert.Equal(t, Bound{Op: OpGE, N: 3}, *records.Assertions[0].Bound)
	// No count declared: existence semantics.
	assert.Equal(t, Existence, records.Assertions[1].Kind)
	assert.Equal(t, Condition{Values: []string{"litigation"}}, records.Assertions[1].Conditions["service_type"])

	skills := byCat[SkillsExecuted]
	require.Len(t, skills.Assertions, 2)
	assert.Equal(t, "completed", skills.Assertions[0].Equals)
	// Missing status defaults to completed.
	assert.Equal(t, "completed", skills.Assertions[1].Equals)

	spans := byCat[TraceExpectations]
	require.Len(t, spans.Assertions, 1)
	assert.Equal(t, "run_skill", spans.Assertions[0].SpanName)

	phases := byCat[PhaseGates]
	require.Len(t, phases.Assertions, 1)
	assert.Equal(t, []string{"case_profile"}, phases.Assertions[0].RequiredOutputs)

	doc := byCat[DocumentQuality]
	assert.True(t, doc.FormatNotApplicable)
	require.Len(t, doc.Assertions, 2)
	assert.Equal(t, Containment, doc.Assertions[0].Kind)
	assert.Equal(t, Exclusion, doc.Assertions[1].Kind)
	assert.True(t, doc.Assertions[1].Patterns[0].IsRegexp())
}

func TestParse_EmptyCategoriesStillPresent(t *testing.T) {
	groups, err := Parse([]byte("memory:\n  retrieval: []\n"))
	require.NoError(t, err)
	require.Len(t, groups, len(CanonicalOrder))
	for _, g := range groups {
		assert.Empty(t, g.Assertions, "category %s", g.Category)
	}
}

func TestParse_UnknownCategory(t *testing.T) {
	_, err := Parse([]byte("memroy:\n  retrieval: []\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_UnknownField(t *testing.T) {
	block := `
matter:
  records:
    - table: matters
      cout: ">= 1"
`
	_, err := Parse([]byte(block))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_UnsupportedOperator(t *testing.T) {
	block := `
trace:
  expectations:
    - span_name: run_skill
      count: "<= 5"
`
	_, err := Parse([]byte(block))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "unsupported count expression")
}

func TestParse_ListCondition(t *testing.T) {
	block := `
matter:
  records:
    - table: matter_parties
      count: ">= 2"
      conditions:
        role: [plaintiff, defendant]
`
	groups, err := Parse([]byte(block))
	require.NoError(t, err)
	var records Group
	for _, g := range groups {
		if g.Category == MatterRecords {
			records = g
		}
	}
	require.Len(t, records.Assertions, 1)
	assert.Equal(t, Condition{Values: []string{"plaintiff", "defendant"}, List: true},
		records.Assertions[0].Conditions["role"])
}

func TestParse_ConditionRejectsMapping(t *testing.T) {
	block := `
matter:
  records:
    - table: matters
      conditions:
        service_type: {nested: value}
`
	_, err := Parse([]byte(block))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "scalar or a list of scalars")
}

func TestParse_ConditionRejectsEmptyList(t *testing.T) {
	block := `
matter:
  records:
    - table: matters
      conditions:
        service_type: []
`
	_, err := Parse([]byte(block))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestParse_MissingRequiredLocator(t *testing.T) {
	block := `
skills:
  executed:
    - status: completed
`
	_, err := Parse([]byte(block))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_BadRegexPattern(t *testing.T) {
	block := `
document:
  quality:
    content:
      must_not_include: ['\{\{(.*?\}\}']
`
	_, err := Parse([]byte(block))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    *Bound
		wantErr bool
	}{
		{name: "nil means existence", in: nil, want: nil},
		{name: "bare int", in: 3, want: &Bound{Op: OpEQ, N: 3}},
		{name: "ge string", in: ">= 5", want: &Bound{Op: OpGE, N: 5}},
		{name: "ge no space", in: ">=2", want: &Bound{Op: OpGE, N: 2}},
		{name: "eq string", in: "== 1", want: &Bound{Op: OpEQ, N: 1}},
		{name: "unsupported op", in: "> 2", wantErr: true},
		{name: "garbage", in: ">= many", wantErr: true},
		{name: "negative", in: ">= -1", wantErr: true},
		{name: "wrong type", in: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBound(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoundSatisfied(t *testing.T) {
	assert.True(t, Bound{Op: OpGE, N: 3}.Satisfied(3))
	assert.True(t, Bound{Op: OpGE, N: 3}.Satisfied(10))
	assert.False(t, Bound{Op: OpGE, N: 3}.Satisfied(2))
	assert.True(t, Bound{Op: OpEQ, N: 0}.Satisfied(0))
	assert.False(t, Bound{Op: OpEQ, N: 0}.Satisfied(1))
}

func TestPattern_TemplatePlaceholder(t *testing.T) {
	p, err := NewPattern(`\{\{.*?\}\}`)
	require.NoError(t, err)
	assert.True(t, p.IsRegexp())
	assert.True(t, p.Match("尊敬的{{court_name}}:"))
	assert.False(t, p.Match("尊敬的北京市朝阳区人民法院:"))

	lit, err := NewPattern("张三E2E01")
	require.NoError(t, err)
	assert.False(t, lit.IsRegexp())
	assert.True(t, lit.Match("原告张三E2E01，男"))
}
