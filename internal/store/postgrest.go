package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"storefront-catalog-service/internal/metrics"
)

const backendREST = "rest"

// RESTConfig configures the PostgREST client.
type RESTConfig struct {
	// URL is the project URL; the client talks to URL + "/rest/v1".
	URL        string
	ServiceKey string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// RESTClient implements Client against a PostgREST (Supabase) endpoint.
type RESTClient struct {
	prefix     string
	serviceKey string
	timeout    time.Duration
	httpClient *http.Client
}

// NewRESTClient creates a RESTClient.
func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("store: rest url is required")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("store: rest service key is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("store: invalid rest url %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RESTClient{
		prefix:     strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		serviceKey: cfg.ServiceKey,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
	}, nil
}

func (c *RESTClient) Select(ctx context.Context, table string, q Query) (Rows, error) {
	if err := checkFilters(q.Filters); err != nil {
		return nil, err
	}
	params := url.Values{}
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	params.Set("select", sel)
	addFilterParams(params, q.Filters)
	if q.Order != nil {
		dir := "asc"
		if q.Order.Desc {
			dir = "desc"
		}
		params.Set("order", q.Order.Field+"."+dir)
	}

	header := http.Header{}
	if q.Range != nil {
		if q.Range.Limit <= 0 || q.Range.Offset < 0 {
			return nil, fmt.Errorf("store: invalid range %+v", *q.Range)
		}
		header.Set("Range-Unit", "items")
		header.Set("Range", fmt.Sprintf("%d-%d", q.Range.Offset, q.Range.Last()))
	}
	return c.do(ctx, "select", http.MethodGet, table, params, header, nil)
}

func (c *RESTClient) Insert(ctx context.Context, table string, values Values) (Rows, error) {
	if len(values) == 0 {
		return nil, errors.New("store: insert needs at least one value")
	}
	body, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode insert body: %w", err)
	}
	header := http.Header{}
	header.Set("Prefer", "return=representation")
	return c.do(ctx, "insert", http.MethodPost, table, nil, header, body)
}

func (c *RESTClient) Update(ctx context.Context, table string, values Values, filters []Filter) (Rows, error) {
	if len(values) == 0 {
		return nil, errors.New("store: update needs at least one value")
	}
	if len(filters) == 0 {
		return nil, errors.New("store: update without filters is refused")
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	body, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode update body: %w", err)
	}
	params := url.Values{}
	addFilterParams(params, filters)
	header := http.Header{}
	header.Set("Prefer", "return=representation")
	return c.do(ctx, "update", http.MethodPatch, table, params, header, body)
}

func (c *RESTClient) Delete(ctx context.Context, table string, filters []Filter) (Rows, error) {
	if len(filters) == 0 {
		return nil, errors.New("store: delete without filters is refused")
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	params := url.Values{}
	addFilterParams(params, filters)
	header := http.Header{}
	header.Set("Prefer", "return=representation")
	return c.do(ctx, "delete", http.MethodDelete, table, params, header, nil)
}

// Ping asks PostgREST for its OpenAPI root, which any healthy instance serves.
func (c *RESTClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.prefix+"/", nil)
	if err != nil {
		return fmt.Errorf("store: failed to build ping request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return &RemoteError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

func (c *RESTClient) authorize(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
}

func (c *RESTClient) do(ctx context.Context, op, method, table string, params url.Values, header http.Header, body []byte) (rows Rows, err error) {
	if table == "" {
		return nil, errors.New("store: table is required")
	}
	start := time.Now()
	defer func() { metrics.ObserveStoreCall(backendREST, op, table, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.prefix + "/" + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("store: failed to build request: %w", err)
	}
	c.authorize(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	// A window past the last row is answered with 416; it is an empty page.
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return Rows{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseRemoteError(resp.StatusCode, payload)
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Rows{}, nil
	}
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, &RemoteError{Status: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	if rows == nil {
		rows = Rows{}
	}
	return rows, nil
}

func addFilterParams(params url.Values, filters []Filter) {
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			params.Add(f.Field, "eq."+formatValue(f.Value))
		case OpILike:
			params.Add(f.Field, containsPattern(formatValue(f.Value)))
		case OpIn:
			vals, _ := inList(f.Value)
			parts := make([]string, len(vals))
			for i, v := range vals {
				if s, ok := v.(string); ok {
					parts[i] = quoteListItem(s)
				} else {
					parts[i] = formatValue(v)
				}
			}
			params.Add(f.Field, "in.("+strings.Join(parts, ",")+")")
		}
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}

// quoteListItem quotes a string for a PostgREST in.(...) list so commas and
// parentheses in values stay literal.
func quoteListItem(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// containsPattern renders a case-insensitive substring filter. PostgREST
// rewrites every * in a like pattern to %, so terms holding a * go through
// imatch with the term quoted as a regular expression instead.
func containsPattern(term string) string {
	if strings.Contains(term, "*") {
		return "imatch." + regexp.QuoteMeta(term)
	}
	return "ilike.*" + escapeLike(term) + "*"
}

func parseRemoteError(status int, body []byte) *RemoteError {
	e := &RemoteError{Status: status}
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		e.Code = res.Get("code").String()
		e.Details = res.Get("details").String()
		e.Hint = res.Get("hint").String()
		for _, key := range []string{"message", "error_description", "error", "msg"} {
			if m := res.Get(key).String(); m != "" {
				e.Message = m
				break
			}
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
