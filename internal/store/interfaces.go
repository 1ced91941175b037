package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Operator is a filter comparison understood by every backend.
type Operator string

const (
	// OpEq matches rows whose field equals the value.
	OpEq Operator = "eq"
	// OpILike matches rows whose field contains the value, ignoring case.
	// The value is a plain substring; backends add their own wildcards.
	OpILike Operator = "ilike"
	// OpIn matches rows whose field is one of the values. The value must be
	// a []int64 or a []string.
	OpIn Operator = "in"
)

// Filter restricts a select, update or delete to matching rows.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

// ILike builds a case-insensitive substring filter.
func ILike(field, substr string) Filter { return Filter{Field: field, Op: OpILike, Value: substr} }

// In builds a set membership filter.
func In(field string, values any) Filter { return Filter{Field: field, Op: OpIn, Value: values} }

// Order sorts a select by one field.
type Order struct {
	Field string
	Desc  bool
}

// Range is a zero-based window of Limit rows starting at Offset.
type Range struct {
	Offset int
	Limit  int
}

// Last returns the inclusive index of the last row in the window.
func (r Range) Last() int { return r.Offset + r.Limit - 1 }

// Query describes a select. An empty Select means all columns.
type Query struct {
	Select  string
	Filters []Filter
	Order   *Order
	Range   *Range
}

// Values are the column values written by an insert or update.
type Values map[string]any

// Columns returns the column names in a stable order.
func (v Values) Columns() []string {
	cols := make([]string, 0, len(v))
	for c := range v {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Rows are the JSON objects returned by a call, one per row.
type Rows []json.RawMessage

// DecodeRows decodes every row into T.
func DecodeRows[T any](rows Rows) ([]T, error) {
	out := make([]T, 0, len(rows))
	for i, raw := range rows {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("store: failed to decode row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client is the tabular data store the catalog reads from and writes to.
// Mutations return the affected rows; their count is the affected-row count.
// Failures are returned as *RemoteError.
type Client interface {
	Pinger
	Select(ctx context.Context, table string, q Query) (Rows, error)
	Insert(ctx context.Context, table string, values Values) (Rows, error)
	Update(ctx context.Context, table string, values Values, filters []Filter) (Rows, error)
	Delete(ctx context.Context, table string, filters []Filter) (Rows, error)
}

// inList returns the members of an OpIn value.
func inList(v any) ([]any, error) {
	switch vals := v.(type) {
	case []int64:
		out := make([]any, len(vals))
		for i, x := range vals {
			out[i] = x
		}
		return out, nil
	case []string:
		out := make([]any, len(vals))
		for i, x := range vals {
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("store: in filter needs []int64 or []string, got %T", v)
	}
}

func checkFilters(filters []Filter) error {
	for _, f := range filters {
		switch f.Op {
		case OpEq, OpILike:
		case OpIn:
			if _, err := inList(f.Value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("store: unsupported operator %q", f.Op)
		}
	}
	return nil
}
