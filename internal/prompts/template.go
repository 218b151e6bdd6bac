package prompts

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"text/template"
)

// variablePattern matches template references like {{.VarName}} or {{ .Book.Title }}.
var variablePattern = regexp.MustCompile(`\{\{-?\s*\.([a-zA-Z_][a-zA-Z0-9_.]*)\s*-?\}\}`)

// ExtractVariables returns the sorted, distinct field references in a template.
// "Hello {{.Name}}, you have {{.Count}} items" returns ["Count", "Name"].
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		if name := match[1]; !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
	}
	sort.Strings(vars)
	return vars
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Execute renders text as a strict template: unknown map keys and missing
// struct fields are errors.
func Execute(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
