package graph

import (
	"fmt"
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"
)

// Kind names an entity type known to a Schema.
type Kind string

func (k Kind) String() string { return string(k) }

// Ref is the identity key of an entity: kind plus primary key.
type Ref struct {
	Kind Kind
	ID   int64
}

func (r Ref) String() string { return fmt.Sprintf("%s#%d", r.Kind, r.ID) }

// Fields holds column values keyed by column name.
type Fields map[string]interface{}

// Record is an opaque row of a declared Kind.
type Record struct {
	Kind   Kind
	ID     int64
	Fields Fields
}

func (r Record) Ref() Ref { return Ref{Kind: r.Kind, ID: r.ID} }

// Has reports whether the column is present and not NULL.
func (r Record) Has(field string) bool {
	v, ok := r.Fields[field]
	return ok && v != nil
}

// Int returns an integer column; ok is false when it is NULL or not numeric.
func (r Record) Int(field string) (int64, bool) {
	if field == "id" {
		return r.ID, r.ID != 0
	}
	return toInt64(r.Fields[field])
}

// NullInt returns an integer column as a null.Int64.
func (r Record) NullInt(field string) null.Int64 {
	i, ok := r.Int(field)
	return null.NewInt64(i, ok)
}

func (r Record) String(field string) string {
	switch v := r.Fields[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r Record) Float(field string) (float64, bool) {
	switch v := normalize(r.Fields[field]).(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func (r Record) Bool(field string) bool {
	switch v := r.Fields[field].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case []byte:
		b, _ := strconv.ParseBool(string(v))
		return b
	}
	return false
}

func (r Record) Time(field string) time.Time {
	if t, ok := r.Fields[field].(time.Time); ok {
		return t
	}
	return time.Time{}
}

// State returns the workflow state of the record.
func (r Record) State() string { return r.String("workflow_state") }

// Clone returns a copy whose Fields can be mutated freely.
func (r Record) Clone() Record {
	fields := make(Fields, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{Kind: r.Kind, ID: r.ID, Fields: fields}
}

func toInt64(v interface{}) (int64, bool) {
	switch x := normalize(v).(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// normalize folds the numeric and byte types drivers hand back into int64,
// float64 and string so values can be compared.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case null.Int64:
		if !x.Valid {
			return nil
		}
		return x.Int64
	case null.String:
		if !x.Valid {
			return nil
		}
		return x.String
	case null.Float64:
		if !x.Valid {
			return nil
		}
		return x.Float64
	case null.Time:
		if !x.Valid {
			return nil
		}
		return x.Time
	case null.Bool:
		if !x.Valid {
			return nil
		}
		return x.Bool
	}
	return v
}

// Normalize returns v in the canonical form used by stores for comparison and
// storage (int64, float64, string, bool, time.Time or nil).
func Normalize(v interface{}) interface{} { return normalize(v) }

// Equal compares two column values after normalization.
func Equal(a, b interface{}) bool {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case nil:
		return b == nil
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		case string:
			i, err := strconv.ParseInt(y, 10, 64)
			return err == nil && i == x
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return x == float64(y)
		case float64:
			return x == y
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Equal(y)
		}
	case string:
		if y, ok := b.(int64); ok {
			return Equal(y, x)
		}
	}
	return a == b
}
