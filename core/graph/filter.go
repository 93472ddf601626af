package graph

import (
	"fmt"
	"reflect"
)

type Op int

const (
	OpEq Op = iota
	OpNotEq
	OpIn
	OpNotIn
	OpIsNull
	OpNotNull
)

func (op Op) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNotEq:
		return "<>"
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpIsNull:
		return "IS NULL"
	case OpNotNull:
		return "IS NOT NULL"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Cond is one conjunct of a row filter. Stores AND all conditions together.
type Cond struct {
	Field  string
	Op     Op
	Value  interface{}
	Values []interface{}
}

func Eq(field string, v interface{}) Cond    { return Cond{Field: field, Op: OpEq, Value: v} }
func NotEq(field string, v interface{}) Cond { return Cond{Field: field, Op: OpNotEq, Value: v} }
func IsNull(field string) Cond               { return Cond{Field: field, Op: OpIsNull} }
func NotNull(field string) Cond              { return Cond{Field: field, Op: OpNotNull} }

// In matches rows whose field equals any element of values, which must be a
// slice. An empty slice matches nothing.
func In(field string, values interface{}) Cond {
	return Cond{Field: field, Op: OpIn, Values: toSlice(values)}
}

// NotIn matches rows whose field is not NULL and differs from every element of
// values. An empty slice matches every non-NULL value.
func NotIn(field string, values interface{}) Cond {
	return Cond{Field: field, Op: OpNotIn, Values: toSlice(values)}
}

func (c Cond) String() string {
	switch c.Op {
	case OpIsNull, OpNotNull:
		return c.Field + " " + c.Op.String()
	case OpIn, OpNotIn:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Values)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Match evaluates the condition against a column value. NULL never matches
// equality, inequality or set membership, as in SQL.
func (c Cond) Match(v interface{}) bool {
	v = normalize(v)
	switch c.Op {
	case OpIsNull:
		return v == nil
	case OpNotNull:
		return v != nil
	}
	if v == nil {
		return false
	}
	switch c.Op {
	case OpEq:
		return Equal(v, c.Value)
	case OpNotEq:
		return normalize(c.Value) != nil && !Equal(v, c.Value)
	case OpIn:
		for _, want := range c.Values {
			if Equal(v, want) {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, want := range c.Values {
			if Equal(v, want) {
				return false
			}
		}
		return true
	}
	return false
}

// Matches reports whether every condition holds for the given row.
func Matches(id int64, fields Fields, conds []Cond) bool {
	for _, c := range conds {
		var v interface{}
		if c.Field == "id" {
			v = id
		} else {
			v = fields[c.Field]
		}
		if !c.Match(v) {
			return false
		}
	}
	return true
}

func toSlice(values interface{}) []interface{} {
	if values == nil {
		return nil
	}
	if vs, ok := values.([]interface{}); ok {
		return vs
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{values}
	}
	out := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}
