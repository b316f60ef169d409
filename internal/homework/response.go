package homework

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	KeyHomeworks   = "homeworks"
	KeyCurrentDate = "current_date"

	FieldName   = "homework_name"
	FieldStatus = "status"
)

// Response is a decoded API answer. Numbers are expected as json.Number
// (decoder UseNumber) but float64 and plain integers are accepted too.
type Response map[string]any

// Submission is one element of the homeworks array.
type Submission map[string]any

// ValidateResponse checks the response shape and returns the homeworks in
// their original order, most recent first. The slice may be empty.
func ValidateResponse(resp Response) ([]Submission, error) {
	raw, ok := resp[KeyHomeworks]
	if !ok {
		return nil, &ResponseError{Key: KeyHomeworks, Reason: ErrMissingKey}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &ResponseError{Key: KeyHomeworks, Reason: ErrWrongShape, Detail: fmt.Sprintf("got %s, want array", typeName(raw))}
	}

	if _, err := CurrentDate(resp); err != nil {
		return nil, err
	}

	out := make([]Submission, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, &ResponseError{
				Key:    fmt.Sprintf("%s[%d]", KeyHomeworks, i),
				Reason: ErrWrongShape,
				Detail: fmt.Sprintf("got %s, want object", typeName(it)),
			}
		}
		out = append(out, Submission(m))
	}
	return out, nil
}

// CurrentDate returns the server timestamp of the response.
func CurrentDate(resp Response) (int64, error) {
	raw, ok := resp[KeyCurrentDate]
	if !ok {
		return 0, &ResponseError{Key: KeyCurrentDate, Reason: ErrMissingKey}
	}
	ts, ok := asInt64(raw)
	if !ok {
		return 0, &ResponseError{Key: KeyCurrentDate, Reason: ErrWrongShape, Detail: fmt.Sprintf("got %s, want integer", typeName(raw))}
	}
	return ts, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
