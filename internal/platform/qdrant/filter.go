package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	filterOpAnd = "$and"
	filterOpOr  = "$or"
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"
)

// translatedFilter is the REST filter shape: conditions are either
// {"key","match":{"value"|"any"}} maps or nested filter maps.
type translatedFilter struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (f translatedFilter) empty() bool {
	return len(f.Must) == 0 && len(f.Should) == 0 && len(f.MustNot) == 0
}

func (f translatedFilter) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.Should) > 0 {
		out["should"] = f.Should
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

func (f *translatedFilter) merge(src translatedFilter) {
	f.Must = append(f.Must, src.Must...)
	f.Should = append(f.Should, src.Should...)
	f.MustNot = append(f.MustNot, src.MustNot...)
}

func filterErr(code OperationErrorCode, cause error, format string, args ...any) error {
	return opErr("filter_translate", code, fmt.Sprintf(format, args...), cause)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func translateFilterMap(filter map[string]any) (translatedFilter, error) {
	out := translatedFilter{}
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if !strings.HasPrefix(k, "$") {
			part, err := translateFieldFilter(k, value)
			if err != nil {
				return translatedFilter{}, err
			}
			out.merge(part)
			continue
		}

		switch op := strings.ToLower(k); op {
		case filterOpAnd, filterOpOr:
			items, err := toObjectSlice(value)
			if err != nil {
				return translatedFilter{}, filterErr(OperationErrorValidation, err, "operator %s expects array of objects", op)
			}
			for _, item := range items {
				sub, err := translateFilterMap(item)
				if err != nil {
					return translatedFilter{}, err
				}
				if op == filterOpAnd {
					out.Must = append(out.Must, sub.asMap())
				} else {
					out.Should = append(out.Should, sub.asMap())
				}
			}
		case filterOpNot:
			item, ok := value.(map[string]any)
			if !ok {
				return translatedFilter{}, filterErr(OperationErrorValidation, nil, "operator %s expects an object", filterOpNot)
			}
			sub, err := translateFilterMap(item)
			if err != nil {
				return translatedFilter{}, err
			}
			out.MustNot = append(out.MustNot, sub.asMap())
		default:
			return translatedFilter{}, filterErr(OperationErrorUnsupportedFilter, nil, "unsupported top-level filter operator %q", k)
		}
	}
	return out, nil
}

func translateFieldFilter(field string, value any) (translatedFilter, error) {
	out := translatedFilter{}
	ops, isOps := value.(map[string]any)
	if !isOps {
		scalar, ok := toScalarValue(value)
		if !ok {
			return out, filterErr(OperationErrorValidation, nil, "field %q expects scalar value or operator object", field)
		}
		out.Must = append(out.Must, matchCondition(field, scalar))
		return out, nil
	}
	if len(ops) == 0 {
		return out, filterErr(OperationErrorValidation, nil, "field %q has empty operator map", field)
	}
	for _, op := range sortedKeys(ops) {
		opVal := ops[op]
		switch strings.ToLower(strings.TrimSpace(op)) {
		case filterOpEq, filterOpNe:
			scalar, ok := toScalarValue(opVal)
			if !ok {
				return translatedFilter{}, filterErr(OperationErrorValidation, nil, "operator %s for field %q expects scalar value", op, field)
			}
			if strings.EqualFold(op, filterOpEq) {
				out.Must = append(out.Must, matchCondition(field, scalar))
			} else {
				out.MustNot = append(out.MustNot, matchCondition(field, scalar))
			}
		case filterOpIn:
			values, err := toScalarSlice(opVal)
			if err != nil {
				return translatedFilter{}, filterErr(OperationErrorValidation, err, "operator %s for field %q expects scalar array", filterOpIn, field)
			}
			if len(values) == 0 {
				return translatedFilter{}, filterErr(OperationErrorValidation, nil, "operator %s for field %q cannot be empty", filterOpIn, field)
			}
			out.Must = append(out.Must, map[string]any{"key": field, "match": map[string]any{"any": values}})
		default:
			return translatedFilter{}, filterErr(OperationErrorUnsupportedFilter, nil, "unsupported filter operator %q for field %q", op, field)
		}
	}
	return out, nil
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func toObjectSlice(value any) ([]map[string]any, error) {
	switch typed := value.(type) {
	case []map[string]any:
		return typed, nil
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected map[string]any in array, got %T", item)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected []any, got %T", value)
	}
}

func toScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := toScalarValue(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int64:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, int64(v))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

// toScalarValue normalizes integers to int64 so every transport sees the
// same representation.
func toScalarValue(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int64, float64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case uint32:
		return int64(typed), true
	case float32:
		return float64(typed), true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// matches evaluates a translated filter map against a payload. Used by the
// in-memory store.
func matches(filter map[string]any, payload map[string]any) bool {
	for _, c := range asSlice(filter["must"]) {
		if !conditionMatches(c, payload) {
			return false
		}
	}
	for _, c := range asSlice(filter["must_not"]) {
		if conditionMatches(c, payload) {
			return false
		}
	}
	should := asSlice(filter["should"])
	if len(should) == 0 {
		return true
	}
	for _, c := range should {
		if conditionMatches(c, payload) {
			return true
		}
	}
	return false
}

func conditionMatches(cond any, payload map[string]any) bool {
	m, ok := cond.(map[string]any)
	if !ok {
		return false
	}
	key, hasKey := m["key"].(string)
	if !hasKey {
		return matches(m, payload)
	}
	match, _ := m["match"].(map[string]any)
	got, present := payload[key]
	if !present {
		return false
	}
	if want, ok := match["value"]; ok {
		return scalarEqual(got, want)
	}
	for _, want := range asSlice(match["any"]) {
		if scalarEqual(got, want) {
			return true
		}
	}
	return false
}

func scalarEqual(a, b any) bool {
	na, aok := toScalarValue(a)
	nb, bok := toScalarValue(b)
	if !aok || !bok {
		return false
	}
	return fmt.Sprint(na) == fmt.Sprint(nb)
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
