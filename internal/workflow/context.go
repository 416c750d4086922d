package workflow

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

// Context carries the artifacts flowing between stages: seed variables
// from config and the workflow file, paths owned by the run, and the
// values extracted from earlier stage output.
type Context struct {
	Variables map[string]interface{}
}

// NewContext copies the seed so later artifact writes never leak back
// into the workflow definition
func NewContext(seed map[string]interface{}) *Context {
	vars := make(map[string]interface{}, len(seed))
	for k, v := range seed {
		vars[k] = v
	}
	return &Context{Variables: vars}
}

// Set stores an artifact under its declared name
func (c *Context) Set(name string, value interface{}) {
	c.Variables[name] = value
}

// Get looks an artifact up
func (c *Context) Get(name string) (interface{}, bool) {
	v, ok := c.Variables[name]
	return v, ok
}

// Interpolate renders {{.name}} references against the artifact store.
// A reference to an artifact no earlier stage produced is a missing
// artifact: the caller must fail the stage without executing it.
func (c *Context) Interpolate(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	tmpl, err := template.New("param").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: bad template %q: %s", errors.ErrInvalidWorkflow, s, err.Error())
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c.Variables); err != nil {
		return "", fmt.Errorf("%w: %q: %s", errors.ErrMissingArtifact, s, err.Error())
	}

	return buf.String(), nil
}

// InterpolateAll renders a slice of templates in order
func (c *Context) InterpolateAll(in []string) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		rendered, err := c.Interpolate(s)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}
