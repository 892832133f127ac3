package terminology

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gofhir/gen3dict/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	vs := &Entry{FullURL: "http://example.org/fhir/ValueSet/a", ResourceType: ResourceValueSet, ID: "a", URL: "http://example.org/vs/a", Resource: []byte(`{}`)}
	require.NoError(t, s.Put(ctx, vs))

	got, err := s.Get(ctx, vs.FullURL)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	got, err = s.GetByURL(ctx, "http://example.org/vs/a")
	require.NoError(t, err)
	assert.Equal(t, vs.FullURL, got.FullURL)

	_, err = s.Get(ctx, "http://example.org/missing")
	assert.ErrorIs(t, err, service.ErrNotFound)

	// Replacing an entry drops its old url alias.
	require.NoError(t, s.Put(ctx, &Entry{FullURL: vs.FullURL, ResourceType: ResourceValueSet, ID: "a2", URL: "http://example.org/vs/a2"}))
	_, err = s.GetByURL(ctx, "http://example.org/vs/a")
	assert.ErrorIs(t, err, service.ErrNotFound)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, s.Put(ctx, nil))
	assert.Error(t, s.Put(ctx, &Entry{FullURL: "x", ResourceType: "Patient"}))
}

// fakeConn is an in-memory stand-in for the valuesets table.
type fakeConn struct {
	rows    map[string][]any
	execs   []string
	execErr error
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *int:
			*p = r.values[i].(int)
		}
	}
	return nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgRow {
	switch {
	case strings.Contains(sql, "count(*)"):
		return fakeRow{values: []any{len(c.rows)}}
	case strings.Contains(sql, "WHERE full_url"):
		if row, ok := c.rows[args[0].(string)]; ok {
			return fakeRow{values: row}
		}
	case strings.Contains(sql, "WHERE url"):
		for _, row := range c.rows {
			if row[3] == args[0] {
				return fakeRow{values: row}
			}
		}
	}
	return fakeRow{err: errors.New("no rows in result set")}
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) error {
	if c.execErr != nil {
		return c.execErr
	}
	c.execs = append(c.execs, sql)
	if strings.HasPrefix(sql, "INSERT") {
		c.rows[args[0].(string)] = []any{args[0], args[1], args[2], args[3], args[4]}
	}
	return nil
}

func TestPGStore(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConn{rows: map[string][]any{}}
	s := NewPGStore(conn)

	require.NoError(t, s.Migrate(ctx))
	assert.Contains(t, conn.execs[0], "CREATE TABLE IF NOT EXISTS valuesets")

	entry := &Entry{FullURL: "http://example.org/cs", ResourceType: ResourceCodeSystem, ID: "cs", URL: "http://example.org/cs-url", Resource: []byte(`{"resourceType":"CodeSystem"}`)}
	require.NoError(t, s.Put(ctx, entry))
	require.NoError(t, s.Put(ctx, entry))
	assert.Contains(t, conn.execs[1], "ON CONFLICT (full_url) DO UPDATE")

	got, err := s.Get(ctx, "http://example.org/cs")
	require.NoError(t, err)
	assert.Equal(t, entry.URL, got.URL)
	assert.JSONEq(t, string(entry.Resource), string(got.Resource))

	got, err = s.GetByURL(ctx, "http://example.org/cs-url")
	require.NoError(t, err)
	assert.Equal(t, entry.FullURL, got.FullURL)

	_, err = s.Get(ctx, "http://example.org/none")
	assert.ErrorIs(t, err, service.ErrNotFound)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	conn.execErr = errors.New("connection reset")
	err = s.Put(ctx, entry)
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrNotFound)
}
