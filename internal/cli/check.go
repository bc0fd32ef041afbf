package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lawseekdog/e2e-tests/internal/checker"
	"github.com/lawseekdog/e2e-tests/internal/config"
	"github.com/lawseekdog/e2e-tests/internal/expectation"
	"github.com/lawseekdog/e2e-tests/internal/quality"
	"github.com/lawseekdog/e2e-tests/internal/report"
	"github.com/lawseekdog/e2e-tests/internal/source"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Simplified bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenario> <session-id>",
		Short: "Verify backend state after a scenario run",
		Long: `Run the quality checks for a completed E2E scenario.

The scenario's expectation block is read from
<E2E_SCENARIOS_DIR>/<scenario>/README.md, the session is resolved to its
matter and user, every expectation category is evaluated against the live
backend, and the markdown report is written to
<E2E_REPORT_DIR>/quality_check_<scenario>_<session-id>.md.

Exit code 0 means a report was produced, whatever the check outcomes;
exit code 2 means the run could not start (bad arguments, unreadable
scenario, configuration error).

Example:
  qualitycheck check traffic_accident 42
  qualitycheck check traffic_accident 42 --simplified --verbose`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Simplified, "simplified", false,
		"only parse the expectations and resolve the session, no checks")

	return cmd
}

func runCheck(opts *CheckOptions, scenario, sessionID string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}

	groups, err := loadScenario(cfg.ScenariosDir, scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "load scenario", err)
	}
	logger.Debug("expectations parsed", "scenario", scenario, "categories", len(groups))

	client := source.NewClient(source.ClientConfig{
		BaseURL:        cfg.BaseURL,
		Token:          cfg.Token,
		UserID:         cfg.UserID,
		OrganizationID: cfg.OrganizationID,
		InternalAPIKey: cfg.InternalAPIKey,
		Timeout:        cfg.HTTPTimeout,
		GetRetries:     3,
		Logger:         logger,
	})

	ctx := cmd.Context()
	rc, err := quality.ResolveRunContext(ctx, client, sessionID, cfg.UserID)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve run context", err)
	}
	logger.Info("run context resolved", "session", rc.SessionID, "matter", rc.MatterID, "user", rc.UserID)

	if opts.Simplified {
		return formatter.Success(simplifiedSummary(scenario, rc, groups))
	}

	records, err := source.NewRecordStore(ctx, cfg.MatterDSN(), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "connect matter database", err)
	}
	defer records.Close()

	runner := &quality.Runner{
		Deps: checker.Deps{
			Facts:     client,
			Records:   records,
			Traces:    client,
			Phases:    client,
			Documents: client,
			Knowledge: client,
			UserID:    rc.UserID,
			MatterID:  rc.MatterID,
			Logger:    logger,
		},
		Scenario: scenario,
		Run:      rc,
		Timeout:  cfg.RunTimeout,
	}

	rep := runner.RunAll(ctx, groups)

	var rendered bytes.Buffer
	if err := report.Render(&rendered, rep); err != nil {
		return WrapExitError(ExitCommandError, "render report", err)
	}

	path := reportPath(cfg.ReportDir, scenario, sessionID)
	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "create report directory", err)
	}
	if err := os.WriteFile(path, rendered.Bytes(), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "write report", err)
	}
	logger.Info("report written", "path", path, "pass_rate", fmt.Sprintf("%.1f%%", rep.PassRate()*100))

	if opts.Format == "json" {
		return formatter.Success(checkPayload{
			ReportPath: path,
			PassRate:   rep.PassRate(),
			Report:     rep,
		})
	}

	fmt.Fprint(cmd.OutOrStdout(), rendered.String())
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	return nil
}

// checkPayload is the JSON success payload for a full run.
type checkPayload struct {
	ReportPath string            `json:"report_path"`
	PassRate   float64           `json:"pass_rate"`
	Report     *report.RunReport `json:"report"`
}

// simplifiedPayload is the result of a connectivity-only run: the parsed
// expectations and the resolved run context, with no checks executed.
type simplifiedPayload struct {
	Scenario   string         `json:"scenario"`
	SessionID  string         `json:"session_id"`
	MatterID   string         `json:"matter_id"`
	UserID     string         `json:"user_id"`
	Categories []categoryInfo `json:"categories"`
}

type categoryInfo struct {
	Category   string `json:"category"`
	Assertions int    `json:"assertions"`
}

func (p simplifiedPayload) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario:   %s\n", p.Scenario)
	fmt.Fprintf(&b, "Session ID: %s\n", p.SessionID)
	fmt.Fprintf(&b, "Matter ID:  %s\n", p.MatterID)
	fmt.Fprintf(&b, "User ID:    %s\n", p.UserID)
	b.WriteString("Declared expectations:\n")
	for _, c := range p.Categories {
		fmt.Fprintf(&b, "  %-22s %d\n", c.Category, c.Assertions)
	}
	b.WriteString("No checks were run (simplified mode).")
	return b.String()
}

// simplifiedSummary describes what a full run would check, without running it.
func simplifiedSummary(scenario string, rc quality.RunContext, groups []expectation.Group) simplifiedPayload {
	p := simplifiedPayload{
		Scenario:  scenario,
		SessionID: rc.SessionID,
		MatterID:  rc.MatterID,
		UserID:    rc.UserID,
	}
	for _, g := range groups {
		p.Categories = append(p.Categories, categoryInfo{
			Category:   g.Category.DisplayName(),
			Assertions: len(g.Assertions),
		})
	}
	return p
}
