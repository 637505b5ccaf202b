// Package template renders text/template strings against step parameters,
// for action configuration such as URLs and headers.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

// Data builds the template root: {{.parameters.x}} and {{.env.NAME}}.
func Data(parameters map[string]any) map[string]any {
	return map[string]any{
		"parameters": parameters,
		"env":        envVars(),
	}
}

// NeedsTemplating reports whether s contains template actions.
func NeedsTemplating(s string) bool {
	return strings.Contains(s, "{{")
}

// Parse checks the template syntax without executing it.
func Parse(templateStr string) (*template.Template, error) {
	tmpl, err := newTemplate().Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return tmpl, nil
}

// RenderString executes the template and returns its text output.
func RenderString(templateStr string, data any) (string, error) {
	if !NeedsTemplating(templateStr) {
		return templateStr, nil
	}

	tmpl, err := Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

func newTemplate() *template.Template {
	return template.New("action").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"json": func(v any) (string, error) {
				data, err := json.Marshal(v)

				return string(data), err
			},
			"join": strings.Join,
		})
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if ok {
			envMap[key] = value
		}
	}

	return envMap
}
