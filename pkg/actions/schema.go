package actions

import (
	"fmt"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/NissesSenap/azdo-scaffolder/pkg/azdo"
)

func describe(s *openapi3.Schema, title, description string) *openapi3.Schema {
	s.Title = title
	s.Description = description
	return s
}

func stringProp(title, description string) *openapi3.Schema {
	return describe(openapi3.NewStringSchema(), title, description)
}

func boolProp(title, description string) *openapi3.Schema {
	return describe(openapi3.NewBoolSchema(), title, description)
}

func integerProp(title, description string) *openapi3.Schema {
	return describe(openapi3.NewIntegerSchema(), title, description)
}

// idProp accepts numeric IDs written either as strings or as integers.
func idProp(title, description string) *openapi3.Schema {
	return describe(openapi3.NewOneOfSchema(
		openapi3.NewStringSchema().WithPattern(`^[0-9]+$`),
		openapi3.NewIntegerSchema(),
	), title, description)
}

func hostProp() *openapi3.Schema {
	return stringProp("Host", "The host of Azure DevOps. Defaults to dev.azure.com").WithDefault(azdo.DefaultHost)
}

func tokenProp() *openapi3.Schema {
	return stringProp("Token", "Token to use for Ado REST API.")
}

func object(required []string, props map[string]*openapi3.Schema) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for name, p := range props {
		s.WithProperty(name, p)
	}
	if len(required) > 0 {
		s.WithRequired(required)
	}
	return s
}

func str(in map[string]any, name string) string {
	switch v := in[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func boolean(in map[string]any, name string) bool {
	b, _ := in[name].(bool)
	return b
}

func number(in map[string]any, name string) float64 {
	f, _ := in[name].(float64)
	return f
}

// intID parses a numeric ID input.
func intID(in map[string]any, name string) (int, error) {
	s := str(in, name)
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, inputErrorf("%s must be a number, got %q", name, s)
	}
	return id, nil
}

func stringMap(in map[string]any, name string) map[string]string {
	m, _ := in[name].(map[string]any)
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k := range m {
		out[k] = str(m, k)
	}
	return out
}
