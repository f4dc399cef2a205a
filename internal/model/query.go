// Package model defines data structures for the query orchestrator.
package model

import "fmt"

// Query is a single incoming question against a target site.
type Query struct {
	// Text is the raw user query.
	Text string `json:"text"`

	// Site identifies the target content collection.
	Site string `json:"site"`

	// PriorTurns holds earlier queries from the same conversation, oldest
	// first. Used for decontextualization.
	PriorTurns []string `json:"prior_turns,omitempty"`

	// Decontextualized is the standalone form of Text. Empty until the
	// decontextualization stage has run.
	Decontextualized string `json:"decontextualized,omitempty"`

	// Params carries per-request tuning options. Use the typed accessors;
	// a value of the wrong type is a configuration error, not a silent
	// fallback to the default.
	Params map[string]any `json:"params,omitempty"`
}

// Effective returns the decontextualized text when available, otherwise
// the raw text.
func (q *Query) Effective() string {
	if q.Decontextualized != "" {
		return q.Decontextualized
	}
	return q.Text
}

// StringParam returns the named parameter as a string.
func (q *Query) StringParam(key, def string) (string, error) {
	v, ok := q.Params[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", paramTypeError(key, "string", v)
	}
	return s, nil
}

// IntParam returns the named parameter as an int. JSON-decoded numbers
// arrive as float64 and are accepted when integral.
func (q *Query) IntParam(key string, def int) (int, error) {
	v, ok := q.Params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, paramTypeError(key, "int", v)
}

// FloatParam returns the named parameter as a float64.
func (q *Query) FloatParam(key string, def float64) (float64, error) {
	v, ok := q.Params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	}
	return 0, paramTypeError(key, "float", v)
}

// BoolParam returns the named parameter as a bool.
func (q *Query) BoolParam(key string, def bool) (bool, error) {
	v, ok := q.Params[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, paramTypeError(key, "bool", v)
	}
	return b, nil
}

// ListParam returns the named parameter as a list of strings.
func (q *Query) ListParam(key string, def []string) ([]string, error) {
	v, ok := q.Params[key]
	if !ok {
		return def, nil
	}
	switch l := v.(type) {
	case []string:
		return l, nil
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, paramTypeError(key, "list of strings", v)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, paramTypeError(key, "list of strings", v)
}

func paramTypeError(key, want string, got any) error {
	return &ConfigurationError{
		Field:  key,
		Reason: fmt.Sprintf("expected %s, got %T", want, got),
	}
}
