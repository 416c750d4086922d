// Package harness is the embeddable API for running workflows from other
// Go programs: test suites and CI drivers that want the runner without
// the CLI surface.
package harness

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/castorix/go-workflow-harness/internal/config"
	"github.com/castorix/go-workflow-harness/internal/logger"
	"github.com/castorix/go-workflow-harness/internal/report"
	"github.com/castorix/go-workflow-harness/internal/utils/errors"
	"github.com/castorix/go-workflow-harness/internal/workflow"
)

// InitOptions contains options for initializing the harness API
type InitOptions struct {
	ConfigFile  string // Path to configuration file
	Debug       bool   // Enable debug logging
	LogFormat   string // Log format: "human" or "json"
	LogFile     string // Path to log file
	SuppressLog bool   // Suppress all logging
}

// Result contains the outcome of a workflow run
type Result struct {
	Success      bool                   // Whether every hard stage passed
	ExitCode     int                    // Process-style exit code for the run
	ErrorMessage string                 // Error message if any
	Artifacts    map[string]interface{} // Artifacts extracted during the run
	ReportPath   string                 // Where report.json was written, if it was
	Report       *workflow.Report       // The full run report
}

var initialized bool

// Initialize initializes the harness API with the given options
func Initialize(options InitOptions) error {
	if initialized {
		return nil // Already initialized
	}

	// Initialize configuration
	configErr := config.Initialize(options.ConfigFile)

	// Update config with provided options
	if options.Debug {
		config.Instance.Debug = true
	}

	if options.LogFormat != "" {
		config.Instance.LogFormat = options.LogFormat
	}

	if options.LogFile != "" {
		config.Instance.LogFile = options.LogFile
	}

	// Initialize logging
	if !options.SuppressLog {
		logConfig := logger.LoggerConfig{
			Debug:     config.Instance.Debug,
			LogFormat: config.Instance.LogFormat,
			LogFile:   config.Instance.LogFile,
		}

		if err := logger.InitLogger(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.LogInfo("Harness API initialized", map[string]interface{}{
			"config_file": options.ConfigFile,
			"debug":       options.Debug,
			"log_format":  options.LogFormat,
		})

		// Log configuration error if any
		if configErr != nil {
			logger.LogWarn("Configuration initialization warning", map[string]interface{}{
				"error": configErr.Error(),
			})
		}
	}

	initialized = true
	return nil
}

// DefaultOptions returns the default initialization options
func DefaultOptions() InitOptions {
	return InitOptions{
		Debug:       false,
		LogFormat:   "human",
		LogFile:     "",
		SuppressLog: false,
	}
}

// Run executes a workflow: a built-in name or a YAML file path. The
// report is written and bundled per the active configuration. A run
// whose hard stages did not all pass returns ErrRunFailed alongside the
// full Result.
func Run(ctx context.Context, source string) (*Result, error) {
	// Ensure API is initialized
	if !initialized {
		if err := Initialize(DefaultOptions()); err != nil {
			return nil, fmt.Errorf("failed to initialize harness API: %w", err)
		}
	}

	wf, err := loadWorkflow(source)
	if err != nil {
		return &Result{
			Success:      false,
			ExitCode:     workflow.ExitSetupFailure,
			ErrorMessage: fmt.Sprintf("Failed to load workflow: %s", err.Error()),
		}, err
	}

	// Validate the workflow
	if err := workflow.ValidationError(workflow.ValidateWorkflow(wf)); err != nil {
		return &Result{
			Success:      false,
			ExitCode:     workflow.ExitSetupFailure,
			ErrorMessage: err.Error(),
		}, err
	}

	if err := report.PrepareDir(config.Instance.Report.Dir); err != nil {
		return &Result{
			Success:      false,
			ExitCode:     workflow.ExitSetupFailure,
			ErrorMessage: fmt.Sprintf("Failed to prepare report directory: %s", err.Error()),
		}, err
	}

	// Execute the workflow
	runner := workflow.NewRunner(&config.Instance)
	rep := runner.Execute(ctx, wf)

	result := &Result{
		Success:   rep.ExitCode() == workflow.ExitPassed,
		ExitCode:  rep.ExitCode(),
		Artifacts: rep.Artifacts,
		Report:    rep,
	}

	if path, err := report.Write(rep, config.Instance.Report.Dir); err != nil {
		logger.LogError("Failed to write run report", err, nil)
	} else {
		result.ReportPath = path
		if format := config.Instance.Report.BundleFormat; format != "" && format != "none" {
			if _, err := report.Bundle(config.Instance.Report.Dir, format); err != nil {
				logger.LogError("Failed to bundle report directory", err, nil)
			}
		}
	}

	if result.ExitCode != workflow.ExitPassed {
		result.ErrorMessage = describeFailure(rep)
		return result, fmt.Errorf("%w: %s", errors.ErrRunFailed, result.ErrorMessage)
	}

	return result, nil
}

// RunFromYAML executes a workflow defined in a YAML string
func RunFromYAML(ctx context.Context, workflowYAML string) (*Result, error) {
	// Ensure API is initialized
	if !initialized {
		if err := Initialize(DefaultOptions()); err != nil {
			return nil, fmt.Errorf("failed to initialize harness API: %w", err)
		}
	}

	// Create a temporary file for the workflow
	tempFile, err := os.CreateTemp("", "workflow-*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	// Write the workflow YAML to the file
	if _, err := tempFile.WriteString(workflowYAML); err != nil {
		return nil, fmt.Errorf("failed to write workflow to temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	// Execute the workflow from the temporary file
	return Run(ctx, tempFile.Name())
}

// SetCLIBinary points the harness at a different CLI under test
func SetCLIBinary(path string) {
	// Ensure API is initialized
	if !initialized {
		_ = Initialize(DefaultOptions())
	}

	config.Instance.CLI.Binary = path
}

// SetNodeBinary points the harness at a different test node binary
func SetNodeBinary(path string) {
	// Ensure API is initialized
	if !initialized {
		_ = Initialize(DefaultOptions())
	}

	config.Instance.Node.Binary = path
}

// KeepWorkspace preserves the run's working directory for post-mortems
func KeepWorkspace(keep bool) {
	// Ensure API is initialized
	if !initialized {
		_ = Initialize(DefaultOptions())
	}

	config.Instance.Workspace.Keep = keep
}

// GetVersion returns the current version of the harness API
func GetVersion() string {
	return "0.1.0"
}

// Shutdown performs any necessary cleanup before the application exits
func Shutdown() error {
	if initialized {
		logger.LogInfo("Harness API shutting down", nil)
		logger.Sync()
	}
	return nil
}

// loadWorkflow resolves a source to a workflow definition; built-in names
// take precedence over files
func loadWorkflow(source string) (*workflow.Workflow, error) {
	if wf, ok := workflow.Builtin(source); ok {
		return wf, nil
	}
	return workflow.LoadWorkflow(source)
}

// describeFailure summarizes what sank the run, for Result.ErrorMessage
func describeFailure(rep *workflow.Report) string {
	if rep.SetupFailure != nil {
		return fmt.Sprintf("setup failed: %s", rep.SetupFailure.Message)
	}

	if failures := rep.HardFailures(); len(failures) > 0 {
		var parts []string
		for _, f := range failures {
			parts = append(parts, fmt.Sprintf("%s (%s): %s", f.Stage, f.Kind, f.Message))
		}
		return strings.Join(parts, "; ")
	}

	if rep.TeardownFailure != nil {
		return fmt.Sprintf("teardown failed: %s", rep.TeardownFailure.Message)
	}

	return ""
}
