package supabase

import (
	"context"
	"net/http"
	"net/url"
)

const (
	acceptSingleObject = "application/vnd.pgrst.object+json"
	preferRepresent    = "return=representation"
)

// Eq builds a PostgREST equality filter.
func Eq(column, value string) url.Values {
	return url.Values{column: {"eq." + value}}
}

func restPath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

// SelectSingle reads exactly one row matching filter into target. A filter
// matching no rows yields an *APIError with code CodeNoRows.
func (c *Client) SelectSingle(ctx context.Context, token, table string, filter url.Values, target any) error {
	q := cloneValues(filter)
	q.Set("select", "*")

	return c.call(ctx, request{
		method:  http.MethodGet,
		path:    restPath(table),
		query:   q,
		token:   token,
		headers: map[string]string{"Accept": acceptSingleObject},
	}, target)
}

// Insert writes row and decodes the stored representation into target.
func (c *Client) Insert(ctx context.Context, token, table string, row, target any) error {
	return c.call(ctx, request{
		method: http.MethodPost,
		path:   restPath(table),
		body:   row,
		token:  token,
		headers: map[string]string{
			"Accept": acceptSingleObject,
			"Prefer": preferRepresent,
		},
	}, target)
}

// Update patches the single row matching filter and decodes the result.
func (c *Client) Update(ctx context.Context, token, table string, filter url.Values, patch, target any) error {
	return c.call(ctx, request{
		method: http.MethodPatch,
		path:   restPath(table),
		query:  cloneValues(filter),
		body:   patch,
		token:  token,
		headers: map[string]string{
			"Accept": acceptSingleObject,
			"Prefer": preferRepresent,
		},
	}, target)
}

// Probe issues the cheapest possible read against table. It is used as a
// connectivity and authorization check.
func (c *Client) Probe(ctx context.Context, table string) error {
	return c.call(ctx, request{
		method: http.MethodGet,
		path:   restPath(table),
		query:  url.Values{"select": {"count"}, "limit": {"1"}},
	}, nil)
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
