package quiz

import (
	"reflect"
	"sort"
)

// FilterOp is the operator of a filter node.
type FilterOp string

const (
	FilterAnd    FilterOp = "and"
	FilterOr     FilterOp = "or"
	FilterNot    FilterOp = "not"
	FilterEq     FilterOp = "eq"
	FilterNeq    FilterOp = "neq"
	FilterIn     FilterOp = "in"
	FilterExists FilterOp = "exists"
)

// Filter is a logical row filter. A nil Filter matches every row.
type Filter struct {
	Op       FilterOp
	Field    string
	Value    any
	Values   []any
	Children []*Filter
}

// Match reports whether row satisfies f.
func (f *Filter) Match(row Row) bool {
	if f == nil {
		return true
	}
	switch f.Op {
	case FilterAnd:
		for _, c := range f.Children {
			if !c.Match(row) {
				return false
			}
		}
		return true
	case FilterOr:
		for _, c := range f.Children {
			if c.Match(row) {
				return true
			}
		}
		return false
	case FilterNot:
		return len(f.Children) == 1 && !f.Children[0].Match(row)
	case FilterEq:
		return valuesEqual(row[f.Field], f.Value)
	case FilterNeq:
		return !valuesEqual(row[f.Field], f.Value)
	case FilterIn:
		v := row[f.Field]
		for _, want := range f.Values {
			if valuesEqual(v, want) {
				return true
			}
		}
		return false
	case FilterExists:
		v, ok := row[f.Field]
		if !ok || v == nil {
			return false
		}
		if s, isStr := v.(string); isStr {
			return s != ""
		}
		return true
	}
	return false
}

// FilterRows returns the rows matching f, preserving order.
func FilterRows(rows []Row, f *Filter) []Row {
	if f == nil {
		return rows
	}
	var out []Row
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func decodeFilter(v any, at path) (*Filter, error) {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return nil, at.errorf("filter must be an object with exactly one operator")
	}
	var op string
	for k := range obj {
		op = k
	}
	arg := obj[op]
	argAt := at.key(op)

	switch FilterOp(op) {
	case FilterAnd, FilterOr:
		items, ok := arg.([]any)
		if !ok || len(items) == 0 {
			return nil, argAt.errorf("%q expects a non-empty array of filters", op)
		}
		f := &Filter{Op: FilterOp(op)}
		for i, item := range items {
			child, err := decodeFilter(item, argAt.index(i))
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, child)
		}
		return f, nil

	case FilterNot:
		child, err := decodeFilter(arg, argAt)
		if err != nil {
			return nil, err
		}
		return &Filter{Op: FilterNot, Children: []*Filter{child}}, nil

	case FilterEq, FilterNeq:
		cond, ok := arg.(map[string]any)
		if !ok {
			return nil, argAt.errorf("%q expects {field, value}", op)
		}
		if err := checkKeys(cond, argAt, "field", "value"); err != nil {
			return nil, err
		}
		field, err := requireString(cond, "field", argAt)
		if err != nil {
			return nil, err
		}
		if _, ok := cond["value"]; !ok {
			return nil, argAt.errorf("%q expects {field, value}", op)
		}
		return &Filter{Op: FilterOp(op), Field: field, Value: cond["value"]}, nil

	case FilterIn:
		cond, ok := arg.(map[string]any)
		if !ok {
			return nil, argAt.errorf("\"in\" expects {field, values}")
		}
		if err := checkKeys(cond, argAt, "field", "values"); err != nil {
			return nil, err
		}
		field, err := requireString(cond, "field", argAt)
		if err != nil {
			return nil, err
		}
		values, ok := cond["values"].([]any)
		if !ok {
			return nil, argAt.key("values").errorf("\"values\" must be an array")
		}
		return &Filter{Op: FilterIn, Field: field, Values: values}, nil

	case FilterExists:
		if field, ok := arg.(string); ok && field != "" {
			return &Filter{Op: FilterExists, Field: field}, nil
		}
		cond, ok := arg.(map[string]any)
		if !ok {
			return nil, argAt.errorf("\"exists\" expects a field name or {field}")
		}
		if err := checkKeys(cond, argAt, "field"); err != nil {
			return nil, err
		}
		field, err := requireString(cond, "field", argAt)
		if err != nil {
			return nil, err
		}
		return &Filter{Op: FilterExists, Field: field}, nil
	}

	ops := []string{string(FilterAnd), string(FilterOr), string(FilterNot), string(FilterEq),
		string(FilterNeq), string(FilterIn), string(FilterExists)}
	sort.Strings(ops)
	return nil, at.errorf("unknown filter operator %q (expected one of %v)", op, ops)
}
