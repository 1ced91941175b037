package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-catalog-service/internal/metrics"
)

const backendMemory = "memory"

// memoryTimeLayout keeps created_at values sortable as strings.
const memoryTimeLayout = "2006-01-02T15:04:05.000000Z"

// MemoryClient is an in-process Client. Every row gets an "id" and a
// "created_at" on insert, and "slug" columns are kept unique.
type MemoryClient struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
	nextID map[string]int64
	now    func() time.Time
}

// NewMemoryClient returns an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		tables: make(map[string][]map[string]any),
		nextID: make(map[string]int64),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for created_at.
func (m *MemoryClient) WithClock(now func() time.Time) *MemoryClient {
	m.now = now
	return m
}

func (m *MemoryClient) Select(ctx context.Context, table string, q Query) (rows Rows, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreCall(backendMemory, "select", table, err, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, transportError(err)
	}
	if err := checkFilters(q.Filters); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]map[string]any, 0)
	for _, row := range m.tables[table] {
		if matchesAll(row, q.Filters) {
			matched = append(matched, row)
		}
	}
	if q.Order != nil {
		field, desc := q.Order.Field, q.Order.Desc
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][field], matched[j][field])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Range != nil {
		if q.Range.Limit <= 0 || q.Range.Offset < 0 {
			return nil, fmt.Errorf("store: invalid range %+v", *q.Range)
		}
		if q.Range.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			end := q.Range.Offset + q.Range.Limit
			if end > len(matched) {
				end = len(matched)
			}
			matched = matched[q.Range.Offset:end]
		}
	}
	return encodeRows(matched, columnsOf(q.Select))
}

func (m *MemoryClient) Insert(ctx context.Context, table string, values Values) (rows Rows, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreCall(backendMemory, "insert", table, err, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, transportError(err)
	}
	if len(values) == 0 {
		return nil, errors.New("store: insert needs at least one value")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := make(map[string]any, len(values)+2)
	for k, v := range values {
		row[k] = v
	}
	if slug, ok := row["slug"]; ok {
		if m.slugTaken(table, slug, nil) {
			return nil, duplicateSlug(slug)
		}
	}
	m.assignDefaults(table, row)
	m.tables[table] = append(m.tables[table], row)
	return encodeRows([]map[string]any{row}, nil)
}

func (m *MemoryClient) Update(ctx context.Context, table string, values Values, filters []Filter) (rows Rows, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreCall(backendMemory, "update", table, err, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, transportError(err)
	}
	if len(values) == 0 {
		return nil, errors.New("store: update needs at least one value")
	}
	if len(filters) == 0 {
		return nil, errors.New("store: update without filters is refused")
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var updated []map[string]any
	for _, row := range m.tables[table] {
		if !matchesAll(row, filters) {
			continue
		}
		if slug, ok := values["slug"]; ok && m.slugTaken(table, slug, row) {
			return nil, duplicateSlug(slug)
		}
		updated = append(updated, row)
	}
	for _, row := range updated {
		for k, v := range values {
			row[k] = v
		}
	}
	return encodeRows(updated, nil)
}

func (m *MemoryClient) Delete(ctx context.Context, table string, filters []Filter) (rows Rows, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreCall(backendMemory, "delete", table, err, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, transportError(err)
	}
	if len(filters) == 0 {
		return nil, errors.New("store: delete without filters is refused")
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tables[table][:0:0]
	var deleted []map[string]any
	for _, row := range m.tables[table] {
		if matchesAll(row, filters) {
			deleted = append(deleted, row)
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept
	return encodeRows(deleted, nil)
}

func (m *MemoryClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Seed appends rows to a table without uniqueness checks. Missing ids and
// timestamps are filled in.
func (m *MemoryClient) Seed(table string, rows ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		row := make(map[string]any, len(r)+2)
		for k, v := range r {
			row[k] = v
		}
		m.assignDefaults(table, row)
		m.tables[table] = append(m.tables[table], row)
	}
}

func (m *MemoryClient) assignDefaults(table string, row map[string]any) {
	if id, ok := toInt64(row["id"]); ok {
		if id > m.nextID[table] {
			m.nextID[table] = id
		}
		row["id"] = id
	} else {
		m.nextID[table]++
		row["id"] = m.nextID[table]
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = m.now().UTC().Format(memoryTimeLayout)
	}
}

func (m *MemoryClient) slugTaken(table string, slug any, self map[string]any) bool {
	for _, row := range m.tables[table] {
		if self != nil && row["id"] == self["id"] {
			continue
		}
		if compareValues(row["slug"], slug) == 0 {
			return true
		}
	}
	return false
}

func duplicateSlug(slug any) *RemoteError {
	return &RemoteError{
		Status:  http.StatusConflict,
		Code:    "23505",
		Message: "duplicate key value violates unique constraint",
		Details: fmt.Sprintf("Key (slug)=(%v) already exists.", slug),
	}
}

func columnsOf(sel string) []string {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == "*" {
		return nil
	}
	parts := strings.Split(sel, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func encodeRows(rows []map[string]any, cols []string) (Rows, error) {
	out := make(Rows, 0, len(rows))
	for _, row := range rows {
		src := row
		if cols != nil {
			src = make(map[string]any, len(cols))
			for _, c := range cols {
				src[c] = row[c]
			}
		}
		b, err := json.Marshal(src)
		if err != nil {
			return nil, fmt.Errorf("store: failed to encode row: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func matchesAll(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matches(row[f.Field], f) {
			return false
		}
	}
	return true
}

func matches(v any, f Filter) bool {
	switch f.Op {
	case OpEq:
		return compareValues(v, f.Value) == 0
	case OpILike:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(formatValue(f.Value)))
	case OpIn:
		vals, err := inList(f.Value)
		if err != nil {
			return false
		}
		for _, want := range vals {
			if compareValues(v, want) == 0 {
				return true
			}
		}
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

// valueKind ranks values for compareValues: nil, numbers, booleans,
// strings, then anything else.
func valueKind(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toInt64(v); ok {
		return 1
	}
	switch v.(type) {
	case bool:
		return 2
	case string:
		return 3
	}
	return 4
}

// compareValues orders nil first, then numbers, booleans and strings.
// Values of different kinds compare unequal.
func compareValues(a, b any) int {
	ka, kb := valueKind(a), valueKind(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	switch ka {
	case 0:
		return 0
	case 1:
		x, _ := toInt64(a)
		y, _ := toInt64(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case 2:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
