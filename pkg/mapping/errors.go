package mapping

import "fmt"

// MissingRequiredFieldError reports a required field mapping whose source
// path resolved to nothing and which carries no default.
type MissingRequiredFieldError struct {
	// SourceField is the path that failed to resolve
	SourceField string
	// TargetField is the destination the mapping would have written
	TargetField string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("required field %q not found in source payload (target %q)", e.SourceField, e.TargetField)
}

// TemplateRenderError reports a template that could not be rendered or whose
// rendered text could not be parsed as structured data.
type TemplateRenderError struct {
	// Expression is the offending {{...}} expression, or empty for parse
	// failures of the rendered text
	Expression string
	// Reason describes the failure
	Reason string
	// Err is the underlying error, if any
	Err error
}

func (e *TemplateRenderError) Error() string {
	msg := "template render failed"
	if e.Expression != "" {
		msg = fmt.Sprintf("template render failed at {{%s}}", e.Expression)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TemplateRenderError) Unwrap() error { return e.Err }
