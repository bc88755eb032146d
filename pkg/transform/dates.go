package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/payload"
)

// tokenReplacements maps display-style date tokens (the form mappings author,
// e.g. "MMM DD, YYYY") to Go reference-time layout fragments. Longer tokens
// are listed first so "MMMM" wins over "MMM".
var tokenReplacements = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"DD", "02"},
	{"D", "2"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"A", "PM"},
	{"a", "pm"},
	{"Z", "Z07:00"},
}

// layoutFromTokens converts a token-style format into a Go time layout.
func layoutFromTokens(format string) string {
	var b strings.Builder
	i := 0
	for i < len(format) {
		matched := false
		for _, tr := range tokenReplacements {
			if strings.HasPrefix(format[i:], tr.token) {
				b.WriteString(tr.layout)
				i += len(tr.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

// inputLayouts are tried in order when parsing string date values.
var inputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
}

// dateFormat renders a date value with a token-style format string. The value
// may be an RFC3339-ish string or a number of Unix seconds; the "format"
// option uses display tokens ("MMM DD, YYYY" -> "Jan 02, 2006").
func dateFormat(v interface{}, options map[string]interface{}) (interface{}, error) {
	format := optionString(options, "format", "")
	if format == "" {
		return nil, &TransformError{Name: "date_format", Reason: "option \"format\" is required"}
	}

	t, err := parseDateValue(v)
	if err != nil {
		return nil, err
	}
	return t.Format(layoutFromTokens(format)), nil
}

func parseDateValue(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case string:
		for _, layout := range inputLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		if f, ok := payload.ToFloat64(t); ok {
			return time.Unix(int64(f), 0).UTC(), nil
		}
		return time.Time{}, &TransformError{Name: "date_format", Reason: fmt.Sprintf("unparseable date %q", t)}
	case float64:
		return time.Unix(int64(t), 0).UTC(), nil
	default:
		return time.Time{}, &TransformError{Name: "date_format", Reason: fmt.Sprintf("expected a date string or Unix seconds, got %s", payload.KindOf(v))}
	}
}
