package templating

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// FieldKind tells the resolver what the resolved value is for. Header and
// param values always end up as strings; a data field whose template is a
// single placeholder keeps the evaluated value's own type, so a
// placeholder can substitute a whole JSON object or number into an
// action body field.
type FieldKind string

const (
	FieldHeader FieldKind = "header"
	FieldParam  FieldKind = "param"
	FieldData   FieldKind = "data"
)

// Context is the read-only request context template paths are evaluated
// against. Paths are rooted here: ${.headers.auth}, ${.body.user-id},
// ${.oauthResponse.body.access_token}.
type Context struct {
	Headers       map[string]any `json:"headers"`
	Query         map[string]any `json:"query"`
	Body          any            `json:"body"`
	OAuthResponse any            `json:"oauthResponse"`
}

// Resolver resolves ${...} path expressions against a Context. The
// context is marshaled once; lookups run against the JSON document.
type Resolver struct {
	doc string
}

func NewResolver(ctx Context) (*Resolver, error) {
	raw, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template context: %w", err)
	}
	return &Resolver{doc: string(raw)}, nil
}

// Resolve substitutes every ${.path} occurrence in template. A template
// that is exactly one placeholder and kind == FieldData returns the
// evaluated value typed as-is. Otherwise non-string values are
// substituted as their JSON encoding and resolution continues just past
// the replaced region, so one string may carry several placeholders.
// An unmatched path resolves to JSON null: nil for a typed result,
// the string "null" inside a larger template.
func (r *Resolver) Resolve(template string, kind FieldKind) any {
	return r.resolveFrom(template, 0, kind)
}

func (r *Resolver) resolveFrom(template string, from int, kind FieldKind) any {
	if from >= len(template) {
		return template
	}

	open := strings.Index(template[from:], "${")
	if open < 0 {
		return template
	}
	open += from

	end := strings.Index(template[open:], "}")
	if end < 0 {
		return template
	}
	end += open

	value := r.lookup(template[open+2 : end])

	// A lone placeholder in a data field substitutes the value with its
	// own type, not a stringification.
	if kind == FieldData && open == 0 && end == len(template)-1 {
		if !value.Exists() {
			return nil
		}
		return value.Value()
	}

	replacement := stringify(value)
	resolved := template[:open] + replacement + template[end+1:]
	return r.resolveFrom(resolved, open+len(replacement), kind)
}

// lookup evaluates a dot-separated path. The leading dot roots the path
// at the context document.
func (r *Resolver) lookup(path string) gjson.Result {
	return gjson.Get(r.doc, strings.TrimPrefix(path, "."))
}

func stringify(value gjson.Result) string {
	if !value.Exists() {
		return "null"
	}
	if value.Type == gjson.String {
		return value.Str
	}
	// Raw is the value's JSON encoding; the document was marshaled
	// compact, so objects come out as {"k":v}.
	return value.Raw
}

// ResolveObject resolves a nested object template field by field: string
// values go through Resolve, nested string-keyed maps recurse, and
// arrays or other non-string values pass through unchanged.
func (r *Resolver) ResolveObject(template map[string]any, kind FieldKind) map[string]any {
	if template == nil {
		return nil
	}
	resolved := make(map[string]any, len(template))
	for key, value := range template {
		switch v := value.(type) {
		case string:
			resolved[key] = r.Resolve(v, kind)
		case map[string]any:
			resolved[key] = r.ResolveObject(v, kind)
		default:
			resolved[key] = value
		}
	}
	return resolved
}

// ResolveBody resolves a deep body template with FieldData semantics.
// Non-map, non-string values (arrays included) pass through unchanged.
func (r *Resolver) ResolveBody(template any) any {
	switch v := template.(type) {
	case string:
		return r.Resolve(v, FieldData)
	case map[string]any:
		return r.ResolveObject(v, FieldData)
	default:
		return template
	}
}
