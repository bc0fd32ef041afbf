package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioReadme = `# 交通事故起诉场景

End-to-end scenario: traffic accident complaint drafting.

` + "```yaml" + `
memory:
  retrieval:
    - entity_key: plaintiff_name
      must_include: ["张三E2E01"]
skills:
  executed:
    - skill_id: draft_complaint
` + "```" + `

## Steps
1. Start a consultation.
`

// writeScenario lays out <dir>/<name>/README.md with the fixture block.
func writeScenario(t *testing.T, dir, name string) {
	t.Helper()
	scenarioDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(scenarioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarioDir, "README.md"), []byte(scenarioReadme), 0o644))
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "traffic_accident")

	groups, err := loadScenario(dir, "traffic_accident")
	require.NoError(t, err)
	require.Len(t, groups, 8)
	assert.Len(t, groups[0].Assertions, 1)
	assert.Equal(t, "plaintiff_name", groups[0].Assertions[0].EntityKey)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := loadScenario(t.TempDir(), "no_such_scenario")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_scenario")
}

func TestLoadScenario_NoBlock(t *testing.T) {
	dir := t.TempDir()
	scenarioDir := filepath.Join(dir, "bare")
	require.NoError(t, os.MkdirAll(scenarioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarioDir, "README.md"),
		[]byte("# Scenario without expectations\n"), 0o644))

	_, err := loadScenario(dir, "bare")
	require.Error(t, err)
}

func TestReportPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("reports", "quality_check_traffic_accident_42.md"),
		reportPath("reports", "traffic_accident", "42"))
}

func TestCheckCommand_MissingScenarioExitsCommandError(t *testing.T) {
	t.Setenv("E2E_SCENARIOS_DIR", t.TempDir())

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "no_such_scenario", "42"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckCommand_Simplified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/consultations/sessions/42" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"matter_id":1001,"user_id":"u-e2e"}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	scenarios := t.TempDir()
	writeScenario(t, scenarios, "traffic_accident")
	t.Setenv("E2E_BASE_URL", server.URL)
	t.Setenv("E2E_SCENARIOS_DIR", scenarios)

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "traffic_accident", "42", "--simplified"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Matter ID:  1001")
	assert.Contains(t, output, "User ID:    u-e2e")
	assert.Contains(t, output, "Memory Retrieval")
	assert.Contains(t, output, "No checks were run")
}

func TestCheckCommand_SessionNotFoundExitsCommandError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	scenarios := t.TempDir()
	writeScenario(t, scenarios, "traffic_accident")
	t.Setenv("E2E_BASE_URL", server.URL)
	t.Setenv("E2E_SCENARIOS_DIR", scenarios)

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "traffic_accident", "42", "--simplified"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
