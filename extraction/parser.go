package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/quarry/core"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so errors point at the model output.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// sections names the four top-level arrays of a reply.
var sections = []string{"quotes", "nodes", "edges", "quote_node_links"}

// Parse decodes a model reply into a Result.
//
// Markdown code fences and leading or trailing prose around the JSON object
// are tolerated. The object must carry at least one of the four sections; a
// missing or null section decodes as an empty slice, and a section holding
// anything other than an array is malformed. Node types are
// normalized (see core.NormalizeNodeType) and must name a known type.
//
// Duplicate local ids are kept as emitted; resolution picks the last one.
func Parse(raw string) (*Result, error) {
	text := stripCodeFence(raw)
	if arrayFirst(text) {
		return nil, fmt.Errorf("%w: top level must be an object", ErrMalformedExtraction)
	}
	body := extractObject(text)
	if body == "" {
		return nil, fmt.Errorf("%w: reply contains no JSON object", ErrMalformedExtraction)
	}

	fields, err := decodeObject(body)
	if err != nil {
		repaired := repairJSON(body)
		if repaired == body {
			return nil, err
		}
		if fields, err = decodeObject(repaired); err != nil {
			return nil, err
		}
	}

	if !hasSection(fields) {
		return nil, fmt.Errorf("%w: reply has none of %s", ErrMalformedExtraction, strings.Join(sections, ", "))
	}

	result := &Result{
		Quotes: []Quote{},
		Nodes:  []Node{},
		Edges:  []Edge{},
		Links:  []Link{},
	}
	targets := map[string]any{
		"quotes":           &result.Quotes,
		"nodes":            &result.Nodes,
		"edges":            &result.Edges,
		"quote_node_links": &result.Links,
	}
	for _, name := range sections {
		data, ok := fields[name]
		if !ok || bytes.Equal(data, []byte("null")) {
			continue
		}
		if len(data) == 0 || data[0] != '[' {
			return nil, fmt.Errorf("%w: %s must be an array", ErrMalformedExtraction, name)
		}
		if err := json.Unmarshal(data, targets[name]); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformedExtraction, name, describeDecodeError(err))
		}
	}

	normalize(result)
	if err := validateResult(result); err != nil {
		return nil, err
	}
	return result, nil
}

// hasSection reports whether fields names any of the four sections.
func hasSection(fields map[string]json.RawMessage) bool {
	for _, name := range sections {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}

// decodeObject decodes body as a JSON object without interpreting its members.
func decodeObject(body string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedExtraction, describeDecodeError(err))
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: top level must be an object", ErrMalformedExtraction)
	}
	for name, data := range fields {
		fields[name] = bytes.TrimSpace(data)
	}
	return fields, nil
}

// normalize trims text fields and canonicalizes node types in place.
func normalize(r *Result) {
	for i := range r.Quotes {
		q := &r.Quotes[i]
		q.Text = strings.TrimSpace(q.Text)
		q.Sentiment = strings.ToLower(strings.TrimSpace(q.Sentiment))
	}
	for i := range r.Nodes {
		n := &r.Nodes[i]
		n.Type = core.NormalizeNodeType(string(n.Type))
		n.Label = strings.TrimSpace(n.Label)
		n.Description = strings.TrimSpace(n.Description)
	}
	for i := range r.Edges {
		e := &r.Edges[i]
		e.Type = strings.TrimSpace(e.Type)
		e.Description = strings.TrimSpace(e.Description)
	}
	for i := range r.Links {
		r.Links[i].Type = strings.TrimSpace(r.Links[i].Type)
	}
}

func validateResult(r *Result) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedExtraction, formatValidationError(err))
	}

	for i, n := range r.Nodes {
		if !n.Type.IsValid() {
			return fmt.Errorf("%w: nodes[%d].type %q is not a known node type", ErrMalformedExtraction, i, n.Type)
		}
	}
	for i, q := range r.Quotes {
		if err := core.ValidateOffsets(q.StartIndex, q.EndIndex); err != nil {
			return fmt.Errorf("%w: quotes[%d]: %w", ErrMalformedExtraction, i, err)
		}
	}
	return nil
}

// formatValidationError formats validation errors into readable messages.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// formatFieldError formats a single field validation error.
// The namespace is trimmed to start at the section, e.g. "nodes[0].label".
func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// describeDecodeError reports where decoding failed without echoing the input.
func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("field %s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
	default:
		return "invalid JSON"
	}
}
