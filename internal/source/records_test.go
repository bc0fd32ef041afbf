package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
)

func scalarCond(v string) expectation.Condition {
	return expectation.Condition{Values: []string{v}}
}

func listCond(vs ...string) expectation.Condition {
	return expectation.Condition{Values: vs, List: true}
}

func TestBuildCountQuery_KnownTable(t *testing.T) {
	query, args, ok, err := buildCountQuery("matter_tasks", "1001", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(1) FROM matter_tasks WHERE matter_id = $1", query)
	assert.Equal(t, []any{"1001"}, args)
}

func TestBuildCountQuery_MattersKeyedByID(t *testing.T) {
	query, args, ok, err := buildCountQuery("matters", "1001",
		map[string]expectation.Condition{"service_type": scalarCond("litigation")})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(1) FROM matters WHERE id = $1 AND service_type = $2", query)
	assert.Equal(t, []any{"1001", "litigation"}, args)
}

func TestBuildCountQuery_ListConditionUsesAny(t *testing.T) {
	conds := map[string]expectation.Condition{
		"role": listCond("plaintiff", "defendant"),
	}
	query, args, ok, err := buildCountQuery("matter_parties", "1001", conds)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(1) FROM matter_parties WHERE matter_id = $1 AND role = ANY($2)", query)
	assert.Equal(t, []any{"1001", []string{"plaintiff", "defendant"}}, args)
}

func TestBuildCountQuery_ConditionsSortedForDeterminism(t *testing.T) {
	conds := map[string]expectation.Condition{
		"role": listCond("plaintiff", "defendant"),
		"kind": scalarCond("person"),
	}
	query, args, ok, err := buildCountQuery("matter_parties", "1001", conds)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(1) FROM matter_parties WHERE matter_id = $1 AND kind = $2 AND role = ANY($3)", query)
	assert.Equal(t, []any{"1001", "person", []string{"plaintiff", "defendant"}}, args)
}

func TestBuildCountQuery_UnknownTable(t *testing.T) {
	_, _, ok, err := buildCountQuery("matter_unknown_things", "1001", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildCountQuery_RejectsInvalidConditionColumn(t *testing.T) {
	_, _, _, err := buildCountQuery("matters", "1001",
		map[string]expectation.Condition{"id; DROP TABLE matters": scalarCond("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid condition column")
}

func TestBuildCountQuery_RejectsEmptyCondition(t *testing.T) {
	_, _, _, err := buildCountQuery("matters", "1001",
		map[string]expectation.Condition{"service_type": {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no value")
}

func TestFoundRecords(t *testing.T) {
	assert.Equal(t, RecordOutcome{Kind: RecordsEmpty}, FoundRecords(0))
	assert.Equal(t, RecordOutcome{Kind: RecordsFound, Count: 4}, FoundRecords(4))
}
