package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

// LoadWorkflow loads a workflow definition from a file. YAML, TOML and
// JSON are accepted; the extension picks the format, defaulting to YAML.
// Templates inside stage parameters are NOT rendered here: artifacts only
// exist once earlier stages have run, so rendering happens per stage.
func LoadWorkflow(filePath string) (*Workflow, error) {
	v := viper.New()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: workflow file not found: %s", errors.ErrFileNotFound, filePath)
	}

	v.SetConfigFile(filePath)

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != "" {
		v.SetConfigType(ext[1:])
	} else {
		v.SetConfigType("yaml")
	}

	// A workflow needs the node unless it says otherwise
	v.SetDefault("needs_node", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading workflow file: %s", errors.ErrInvalidWorkflow, err.Error())
	}

	workflow := &Workflow{}
	if err := v.Unmarshal(workflow); err != nil {
		return nil, fmt.Errorf("%w: parsing workflow: %s", errors.ErrInvalidWorkflow, err.Error())
	}

	if workflow.Variables == nil {
		workflow.Variables = make(map[string]interface{})
	}

	normalizePolicies(workflow)

	return workflow, nil
}

// normalizePolicies fills in the default policy so downstream code never
// sees an empty one
func normalizePolicies(workflow *Workflow) {
	for i := range workflow.Stages {
		if workflow.Stages[i].Policy == "" {
			workflow.Stages[i].Policy = PolicyHard
		}
	}
}

// ValidateWorkflow validates the workflow structure and parameters
func ValidateWorkflow(workflow *Workflow) []error {
	var errs []error

	if workflow.Name == "" {
		errs = append(errs, fmt.Errorf("workflow name is required"))
	}

	if len(workflow.Stages) == 0 {
		errs = append(errs, fmt.Errorf("workflow must contain at least one stage"))
	}

	for i, stage := range workflow.Stages {
		if stage.Name == "" {
			errs = append(errs, fmt.Errorf("stage %d: name is required", i+1))
		}

		if stage.Kind == "" {
			errs = append(errs, fmt.Errorf("stage %d (%s): kind is required", i+1, stage.Name))
		} else if !isValidStageKind(stage.Kind) {
			errs = append(errs, fmt.Errorf("stage %d (%s): invalid kind '%s'", i+1, stage.Name, stage.Kind))
		}

		if stage.Policy != PolicyHard && stage.Policy != PolicySoft {
			errs = append(errs, fmt.Errorf("stage %d (%s): policy must be 'hard' or 'soft', got '%s'", i+1, stage.Name, stage.Policy))
		}

		if !workflow.NeedsNode && (stage.Kind == "fund" || stage.Kind == "probe") {
			errs = append(errs, fmt.Errorf("stage %d (%s): kind '%s' requires the node but the workflow sets needs_node: false", i+1, stage.Name, stage.Kind))
		}

		for _, err := range validateStageParameters(stage) {
			errs = append(errs, fmt.Errorf("stage %d (%s): %w", i+1, stage.Name, err))
		}
	}

	return errs
}

// isValidStageKind checks if a stage kind is valid
func isValidStageKind(kind string) bool {
	switch kind {
	case "cli", "fund", "probe":
		return true
	}
	return false
}

// validateStageParameters validates parameters for a specific stage kind
func validateStageParameters(stage Stage) []error {
	var errs []error

	switch stage.Kind {
	case "cli":
		if _, ok := stage.Parameters["args"]; !ok {
			errs = append(errs, fmt.Errorf("missing required parameter 'args'"))
		}
		var p cliParams
		if err := decodeParams(stage.Parameters, &p); err != nil {
			errs = append(errs, fmt.Errorf("bad parameters: %s", err.Error()))
			break
		}
		for name, spec := range p.Extract {
			if spec.Label == "" {
				errs = append(errs, fmt.Errorf("extract '%s': missing label", name))
			}
			switch spec.Form {
			case "int", "address", "hex64":
			default:
				errs = append(errs, fmt.Errorf("extract '%s': form must be int, address or hex64, got '%s'", name, spec.Form))
			}
		}

	case "fund":
		if _, ok := stage.Parameters["to"]; !ok {
			errs = append(errs, fmt.Errorf("missing required parameter 'to'"))
		}

	case "probe":
		// Retries and interval fall back to the node config
	}

	return errs
}

// ValidationError folds a list of findings into one wrapped error for
// callers that want a single go/no-go answer
func ValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidWorkflow, strings.Join(msgs, "; "))
}
