package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/todosync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run todo scenarios",
		Long: `Run YAML todo scenarios against an in-memory store.

Each scenario drives the view cache, sync client and SQLite store with
deterministic ids and timestamps, checks its expect clauses and final
assertions, and compares the trace with <scenarios-dir>/golden/<name>.golden
when that file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  todo test ./scenarios
  todo test ./scenarios --filter "rollback-*"
  todo test ./scenarios --update
  todo test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	if len(files) == 0 && opts.Format != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range files {
		sr := runScenario(file, opts, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles returns the .yaml/.yml files under dir whose base name
// (without extension) matches filter. golden/ subdirectories are skipped.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// scenarioReporter prints one line per scenario in text mode and builds its
// ScenarioResult.
type scenarioReporter struct {
	w    io.Writer
	text bool
}

func (r scenarioReporter) pass(name, note string) ScenarioResult {
	if r.text {
		fmt.Fprintf(r.w, "✓ %s%s\n", name, note)
	}
	return ScenarioResult{Name: name, Pass: true}
}

// fail prints detail lines indented under the scenario name. errs become the
// JSON errors; when nil, details are used.
func (r scenarioReporter) fail(name, note string, details, errs []string) ScenarioResult {
	if r.text {
		fmt.Fprintf(r.w, "✗ %s%s\n", name, note)
		for _, d := range details {
			fmt.Fprintf(r.w, "  %s\n", d)
		}
	}
	if errs == nil {
		errs = details
	}
	return ScenarioResult{Name: name, Pass: false, Errors: errs}
}

func (r scenarioReporter) result(name, note string, res *harness.Result) ScenarioResult {
	if res.Pass {
		return r.pass(name, note)
	}
	return r.fail(name, note, res.Errors, nil)
}

// runScenario runs one scenario file. Without --update, a golden file next to
// the scenario (if any) must match the trace byte for byte.
func runScenario(scenarioFile string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	rep := scenarioReporter{w: cmd.OutOrStdout(), text: opts.Format != "json"}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return rep.fail(filepath.Base(scenarioFile), "",
			[]string{fmt.Sprintf("Load error: %v", err)},
			[]string{fmt.Sprintf("failed to load scenario: %v", err)})
	}

	result, err := harness.RunContext(commandContext(cmd), scenario)
	if err != nil {
		return rep.fail(scenario.Name, "",
			[]string{fmt.Sprintf("Execution error: %v", err)},
			[]string{fmt.Sprintf("execution failed: %v", err)})
	}

	if opts.Update {
		if err := updateGoldenFile(scenario, result, scenarioFile); err != nil {
			return rep.fail(scenario.Name, "",
				[]string{fmt.Sprintf("Golden update error: %v", err)},
				[]string{fmt.Sprintf("failed to update golden file: %v", err)})
		}
		return rep.result(scenario.Name, " (golden updated)", result)
	}

	goldenPath := goldenFilePath(scenarioFile)
	if _, err := os.Stat(goldenPath); os.IsNotExist(err) {
		return rep.result(scenario.Name, "", result)
	}

	match, err := compareWithGolden(scenario, result, goldenPath)
	if err != nil {
		return rep.fail(scenario.Name, "",
			[]string{fmt.Sprintf("Golden comparison error: %v", err)},
			[]string{fmt.Sprintf("golden comparison failed: %v", err)})
	}
	if !match {
		return rep.fail(scenario.Name, "",
			[]string{"Golden file mismatch (run with --update to regenerate)"},
			[]string{"trace does not match golden file"})
	}
	return rep.result(scenario.Name, "", result)
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	name := strings.TrimSuffix(filepath.Base(scenarioFile), filepath.Ext(scenarioFile))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func updateGoldenFile(scenario *harness.Scenario, result *harness.Result, scenarioFile string) error {
	data, err := harness.MarshalSnapshot(scenario, result)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	path := goldenFilePath(scenarioFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func compareWithGolden(scenario *harness.Scenario, result *harness.Result, goldenPath string) (bool, error) {
	want, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("read golden file: %w", err)
	}
	got, err := harness.MarshalSnapshot(scenario, result)
	if err != nil {
		return false, fmt.Errorf("marshal trace: %w", err)
	}
	return bytes.Equal(want, got), nil
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "TESTS_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return testsExit(result)
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if err := testsExit(result); err != nil {
		return err
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

// testsExit is ExitFailure when any scenario failed.
func testsExit(result TestResult) error {
	if result.Failed > 0 {
		return reportedExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed), nil)
	}
	return nil
}
