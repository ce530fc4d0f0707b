package api

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

const (
	leftDelim  = "${{"
	rightDelim = "}}"
)

// singleExpr matches a string that is exactly one template expression. Such
// values keep the type of what they evaluate to instead of becoming strings.
var singleExpr = regexp.MustCompile(`^\$\{\{(.*)\}\}$`)

var templateFuncs = template.FuncMap{
	"toJson": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"upper":   strings.ToUpper,
	"lower":   strings.ToLower,
	"replace": func(from, to, s string) string { return strings.ReplaceAll(s, from, to) },
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
}

// renderValue renders ${{ }} expressions in every string of v against data.
// Maps and slices are walked recursively.
func renderValue(v any, data map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return renderString(val, data)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func renderString(s string, data map[string]any) (any, error) {
	if !strings.Contains(s, leftDelim) {
		return s, nil
	}

	trimmed := strings.TrimSpace(s)
	if m := singleExpr.FindStringSubmatch(trimmed); m != nil && !strings.Contains(m[1], rightDelim) {
		out, err := execTemplate(leftDelim+" ("+m[1]+") | toJson "+rightDelim, data)
		if err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(out), &value); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", s, err)
		}
		return value, nil
	}

	return execTemplate(s, data)
}

func execTemplate(text string, data map[string]any) (string, error) {
	tmpl, err := template.New("input").
		Delims(leftDelim, rightDelim).
		Funcs(templateFuncs).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template %q: %w", text, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", text, err)
	}
	return b.String(), nil
}

// renderMap renders a step input or task output map.
func renderMap(in map[string]any, data map[string]any) (map[string]any, error) {
	if in == nil {
		return map[string]any{}, nil
	}
	out, err := renderValue(in, data)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}
