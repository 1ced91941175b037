package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"

	"storefront-catalog-service/internal/metrics"
)

const (
	backendPostgres     = "postgres"
	foreignKeyViolation = "23503"
)

// PostgresClient implements Client directly on PostgreSQL. Every row is
// rendered with row_to_json so callers see the same JSON as from PostgREST.
type PostgresClient struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresClient creates a new PostgresClient instance.
func NewPostgresClient(db *sql.DB, timeout time.Duration) *PostgresClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresClient{db: db, timeout: timeout}
}

func (c *PostgresClient) Select(ctx context.Context, table string, q Query) (Rows, error) {
	if err := checkFilters(q.Filters); err != nil {
		return nil, err
	}
	cols, err := selectList(q.Select)
	if err != nil {
		return nil, err
	}
	where, args := whereClause(q.Filters, 1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT row_to_json(t) FROM (SELECT %s FROM %s%s", cols, pq.QuoteIdentifier(table), where)
	if q.Order != nil {
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", pq.QuoteIdentifier(q.Order.Field), dir)
	}
	if q.Range != nil {
		if q.Range.Limit <= 0 || q.Range.Offset < 0 {
			return nil, fmt.Errorf("store: invalid range %+v", *q.Range)
		}
		fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, q.Range.Limit, q.Range.Offset)
	}
	sb.WriteString(") t")
	return c.query(ctx, "select", table, sb.String(), args)
}

func (c *PostgresClient) Insert(ctx context.Context, table string, values Values) (Rows, error) {
	if len(values) == 0 {
		return nil, errors.New("store: insert needs at least one value")
	}
	cols := values.Columns()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		names[i] = pq.QuoteIdentifier(col)
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = columnArg(values[col])
	}
	query := fmt.Sprintf("WITH t AS (INSERT INTO %s (%s) VALUES (%s) RETURNING *) SELECT row_to_json(t) FROM t",
		pq.QuoteIdentifier(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	return c.query(ctx, "insert", table, query, args)
}

func (c *PostgresClient) Update(ctx context.Context, table string, values Values, filters []Filter) (Rows, error) {
	if len(values) == 0 {
		return nil, errors.New("store: update needs at least one value")
	}
	if len(filters) == 0 {
		return nil, errors.New("store: update without filters is refused")
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	cols := values.Columns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
		args = append(args, columnArg(values[col]))
	}
	where, whereArgs := whereClause(filters, len(args)+1)
	args = append(args, whereArgs...)
	query := fmt.Sprintf("WITH t AS (UPDATE %s SET %s%s RETURNING *) SELECT row_to_json(t) FROM t",
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), where)
	return c.query(ctx, "update", table, query, args)
}

func (c *PostgresClient) Delete(ctx context.Context, table string, filters []Filter) (Rows, error) {
	if len(filters) == 0 {
		return nil, errors.New("store: delete without filters is refused")
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	where, args := whereClause(filters, 1)
	query := fmt.Sprintf("WITH t AS (DELETE FROM %s%s RETURNING *) SELECT row_to_json(t) FROM t",
		pq.QuoteIdentifier(table), where)
	return c.query(ctx, "delete", table, query, args)
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return transportError(err)
	}
	return nil
}

func (c *PostgresClient) query(ctx context.Context, op, table, query string, args []any) (rows Rows, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreCall(backendPostgres, op, table, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgresError(err)
	}
	defer result.Close()

	rows = Rows{}
	for result.Next() {
		var raw []byte
		if err := result.Scan(&raw); err != nil {
			return nil, postgresError(err)
		}
		// The driver may reuse raw after the next call to Next.
		rows = append(rows, append([]byte(nil), raw...))
	}
	if err := result.Err(); err != nil {
		return nil, postgresError(err)
	}
	return rows, nil
}

func selectList(sel string) (string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == "*" {
		return "*", nil
	}
	parts := strings.Split(sel, ",")
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", fmt.Errorf("store: invalid select list %q", sel)
		}
		quoted = append(quoted, pq.QuoteIdentifier(p))
	}
	return strings.Join(quoted, ", "), nil
}

// whereClause renders filters as a WHERE clause with placeholders numbered
// from first.
func whereClause(filters []Filter, first int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		n := first + len(args)
		col := pq.QuoteIdentifier(f.Field)
		switch f.Op {
		case OpEq:
			conds = append(conds, fmt.Sprintf("%s = $%d", col, n))
			args = append(args, f.Value)
		case OpILike:
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", col, n))
			args = append(args, "%"+escapeLike(formatValue(f.Value))+"%")
		case OpIn:
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col, n))
			args = append(args, pq.Array(f.Value))
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func columnArg(v any) any {
	switch x := v.(type) {
	case []string:
		if x == nil {
			x = []string{}
		}
		return pq.Array(x)
	case []int64:
		return pq.Array(x)
	default:
		return v
	}
}

// postgresError maps driver errors onto the HTTP statuses PostgREST would
// have answered with.
func postgresError(err error) *RemoteError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return transportError(err)
	}
	status := http.StatusBadRequest
	switch pqErr.Code {
	case "23505", foreignKeyViolation: // unique_violation
		status = http.StatusConflict
	case "42P01", "42703": // undefined_table, undefined_column
		status = http.StatusNotFound
	}
	if pqErr.Code.Class() == "08" || pqErr.Code.Class() == "53" || pqErr.Code.Class() == "57" {
		status = http.StatusServiceUnavailable
	}
	return &RemoteError{
		Status:  status,
		Code:    string(pqErr.Code),
		Message: pqErr.Message,
		Details: pqErr.Detail,
		Hint:    pqErr.Hint,
		Err:     err,
	}
}
