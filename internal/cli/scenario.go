package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lawseekdog/e2e-tests/internal/expectation"
)

// loadScenario reads a scenario's README and parses its expectation block
// into the eight category groups.
func loadScenario(scenariosDir, scenario string) ([]expectation.Group, error) {
	path := filepath.Join(scenariosDir, scenario, "README.md")
	markdown, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", scenario, err)
	}

	block, err := expectation.ExtractBlock(markdown)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario, err)
	}

	groups, err := expectation.Parse(block)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario, err)
	}
	return groups, nil
}

// reportPath builds the persisted report location for a run.
func reportPath(reportDir, scenario, sessionID string) string {
	return filepath.Join(reportDir, fmt.Sprintf("quality_check_%s_%s.md", scenario, sessionID))
}
