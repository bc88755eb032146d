package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wehubfusion/Daedalus/pkg/expr"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// RenderTemplate renders a transform script: every {{expr}} occurrence is
// replaced, then the rendered text is parsed back into structured data
// (object, array or scalar). Expressions are dotted paths into the input
// payload or context, paths piped through transform filters, or ternary
// conditions over the restricted expression grammar.
func (p *Processor) RenderTemplate(
	script string,
	input map[string]interface{},
	ctx workflow.ExecutionContext,
) (interface{}, error) {
	env := buildTemplateEnv(input, ctx)
	envJSON, err := json.Marshal(env)
	if err != nil {
		return nil, &TemplateRenderError{Reason: "cannot encode template environment", Err: err}
	}

	segments, err := p.renderSegments(script, env, envJSON)
	if err != nil {
		return nil, err
	}

	// A template that is exactly one placeholder returns the typed value.
	if v, ok := lonePlaceholder(segments); ok {
		return v, nil
	}

	structured := assemble(segments, true)
	var parsed interface{}
	if err := json.Unmarshal([]byte(structured), &parsed); err == nil {
		normalized, nErr := payload.Normalize(parsed)
		if nErr != nil {
			return nil, &TemplateRenderError{Reason: "rendered data is not a valid payload", Err: nErr}
		}
		return normalized, nil
	}

	trimmed := strings.TrimSpace(structured)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
		return nil, &TemplateRenderError{Reason: fmt.Sprintf("rendered text is not valid structured data: %s", snippet(trimmed))}
	}
	// Plain text renders to a string scalar.
	return assemble(segments, false), nil
}

// renderText interpolates placeholders into a plain string; used for static
// values. A lone placeholder returns the typed value.
func (p *Processor) renderText(s string, vars map[string]interface{}) (interface{}, error) {
	envJSON, err := json.Marshal(vars)
	if err != nil {
		return nil, &TemplateRenderError{Reason: "cannot encode context", Err: err}
	}
	segments, err := p.renderSegments(s, expr.Env(vars), envJSON)
	if err != nil {
		return nil, err
	}
	if v, ok := lonePlaceholder(segments); ok {
		return v, nil
	}
	return assemble(segments, false), nil
}

// lonePlaceholder reports whether the segments amount to a single
// placeholder surrounded only by whitespace, and returns its value.
func lonePlaceholder(segments []segment) (interface{}, bool) {
	var value interface{}
	found := false
	for _, seg := range segments {
		if seg.isValue {
			if found {
				return nil, false
			}
			value = seg.value
			found = true
			continue
		}
		if strings.TrimSpace(seg.text) != "" {
			return nil, false
		}
	}
	return value, found
}

// segment is a run of literal text or a resolved placeholder value.
type segment struct {
	text    string
	value   interface{}
	isValue bool
}

// renderSegments splits the script on {{...}} markers and resolves each
// placeholder. Unresolved expressions fail the render.
func (p *Processor) renderSegments(script string, env expr.Env, envJSON []byte) ([]segment, error) {
	var segments []segment
	rest := script
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			if rest != "" {
				segments = append(segments, segment{text: rest})
			}
			return segments, nil
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return nil, &TemplateRenderError{Expression: rest[start:], Reason: "unterminated placeholder"}
		}
		if start > 0 {
			segments = append(segments, segment{text: rest[:start]})
		}
		exprText := strings.TrimSpace(rest[start+2 : start+end])
		value, err := p.evalPlaceholder(exprText, env, envJSON)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment{value: value, isValue: true})
		rest = rest[start+end+2:]
	}
}

// assemble joins segments into rendered text. In structured mode string
// values are JSON-escaped so they interpolate correctly inside quoted
// template positions; composites always render as compact JSON.
func assemble(segments []segment, structured bool) string {
	var b strings.Builder
	for _, seg := range segments {
		if !seg.isValue {
			b.WriteString(seg.text)
			continue
		}
		if s, ok := seg.value.(string); ok && structured {
			enc, _ := json.Marshal(s)
			b.Write(enc[1 : len(enc)-1])
			continue
		}
		text, err := payload.Stringify(seg.value)
		if err == nil {
			b.WriteString(text)
		}
	}
	return b.String()
}

// evalPlaceholder resolves a single placeholder expression: a path, a path
// piped through filters, or a restricted expression.
func (p *Processor) evalPlaceholder(exprText string, env expr.Env, envJSON []byte) (interface{}, error) {
	if exprText == "" {
		return nil, &TemplateRenderError{Expression: exprText, Reason: "empty expression"}
	}

	parts := splitPipes(exprText)
	base := strings.TrimSpace(parts[0])

	var value interface{}
	if isPathExpr(base) {
		result := gjson.GetBytes(envJSON, toGjsonPath(base))
		if !result.Exists() {
			return nil, &TemplateRenderError{Expression: exprText, Reason: fmt.Sprintf("path %q not found", base)}
		}
		value = result.Value()
	} else {
		v, err := expr.Eval(base, env)
		if err != nil {
			return nil, &TemplateRenderError{Expression: exprText, Reason: "expression failed", Err: err}
		}
		value = v
	}

	for _, rawFilter := range parts[1:] {
		name, args, err := parseFilter(strings.TrimSpace(rawFilter))
		if err != nil {
			return nil, &TemplateRenderError{Expression: exprText, Err: err}
		}
		value, err = p.transforms.ApplyPositional(name, value, args)
		if err != nil {
			return nil, &TemplateRenderError{Expression: exprText, Err: err}
		}
	}
	return value, nil
}

// buildTemplateEnv exposes the input payload at the top level, the context
// under "context", and bare context vars where they do not shadow payload
// fields.
func buildTemplateEnv(input map[string]interface{}, ctx workflow.ExecutionContext) expr.Env {
	env := make(expr.Env, len(input)+8)
	for k, v := range input {
		env[k] = v
	}
	vars := ctx.Vars()
	env["context"] = vars
	for k, v := range vars {
		if _, shadowed := env[k]; !shadowed {
			env[k] = v
		}
	}
	return env
}

// splitPipes splits on '|' outside quotes and parentheses.
func splitPipes(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == '|' && depth == 0:
			// "||" belongs to the expression grammar, not a pipe.
			if i+1 < len(s) && s[i+1] == '|' {
				i++
				continue
			}
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// isPathExpr reports whether s is a bare payload path (no operators).
func isPathExpr(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == '.' || c == '[' || c == ']':
		default:
			return false
		}
	}
	// Bare literals are expressions, not paths.
	switch s {
	case "true", "false", "null":
		return false
	}
	return true
}

// toGjsonPath converts bracketed indexes to gjson's dotted form:
// items[0].sku -> items.0.sku
func toGjsonPath(p string) string {
	p = strings.ReplaceAll(p, "[", ".")
	return strings.ReplaceAll(p, "]", "")
}

// parseFilter parses "name" or "name(arg, ...)" with literal arguments.
func parseFilter(s string) (string, []interface{}, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" {
			return "", nil, fmt.Errorf("empty filter")
		}
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("filter %q: missing ')'", s)
	}
	name := strings.TrimSpace(s[:open])
	argText := s[open+1 : len(s)-1]
	if strings.TrimSpace(argText) == "" {
		return name, nil, nil
	}

	var args []interface{}
	for _, raw := range splitArgs(argText) {
		arg, err := parseLiteral(strings.TrimSpace(raw))
		if err != nil {
			return "", nil, fmt.Errorf("filter %q: %w", name, err)
		}
		args = append(args, arg)
	}
	return name, args, nil
}

// splitArgs splits on commas outside quotes.
func splitArgs(s string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote && s[i-1] != '\\' {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// parseLiteral parses a filter argument: quoted string, number, boolean or
// null.
func parseLiteral(s string) (interface{}, error) {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			inner := s[1 : len(s)-1]
			inner = strings.ReplaceAll(inner, "\\'", "'")
			inner = strings.ReplaceAll(inner, "\\\"", "\"")
			return inner, nil
		}
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unparseable argument %q", s)
}

func snippet(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
