package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/helixml/datasync/domain/query"
	"github.com/helixml/datasync/infrastructure/odata"
	"github.com/helixml/datasync/internal/testserver"
)

func defaultFlags() queryFlags {
	return queryFlags{take: -1, format: "json"}
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{"DATASYNC_ENDPOINT", "DATASYNC_PAGE_SIZE", "DATASYNC_HTTP_CACHE_DIR"} {
		t.Setenv(v, "")
		require.NoError(t, os.Unsetenv(v))
	}
	t.Setenv("DATASYNC_MAX_RETRIES", "0")
	t.Setenv("DATASYNC_LOG_LEVEL", "ERROR")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func compiled(t *testing.T, f queryFlags) string {
	t.Helper()
	q, err := buildQuery(f)
	require.NoError(t, err)
	req, err := odata.Compile(q.Descriptor())
	require.NoError(t, err)
	return req.Encode()
}

func TestBuildQuery(t *testing.T) {
	f := defaultFlags()
	f.where = []string{"Name=bob", "Age=5"}
	f.orderBy = "Name"
	f.thenBy = []string{"Age desc"}
	f.skip = 5
	f.take = 10
	f.count = true
	f.params = []string{"tenant=a"}

	assert.Equal(t,
		"$filter=(Name%20eq%20'bob')%20and%20(Age%20eq%205)&$orderby=Name%20asc,Age%20desc&$skip=5&$top=10&$count=true&tenant=a",
		compiled(t, f))
}

func TestBuildQuery_Contains(t *testing.T) {
	f := defaultFlags()
	f.contains = []string{"title='42'"}
	f.deleted = true
	assert.Equal(t, "$filter=contains(title,'42')&__includedeleted=true", compiled(t, f))
}

func TestBuildQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*queryFlags)
	}{
		{"malformed where", func(f *queryFlags) { f.where = []string{"novalue"} }},
		{"empty key", func(f *queryFlags) { f.params = []string{"=x"} }},
		{"reserved parameter", func(f *queryFlags) { f.params = []string{"filter=x"} }},
		{"negative skip", func(f *queryFlags) { f.skip = -1 }},
		{"negative take", func(f *queryFlags) { f.take = -2 }},
		{"then-by without order-by", func(f *queryFlags) { f.thenBy = []string{"x"} }},
		{"both orderings", func(f *queryFlags) { f.orderBy, f.orderByDesc = "a", "b" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := defaultFlags()
			tt.mutate(&f)
			_, err := buildQuery(f)
			assert.Error(t, err)
		})
	}
}

func TestParseValue(t *testing.T) {
	assert.Nil(t, parseValue("null"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "Inf", parseValue("Inf"))
	assert.Equal(t, "42", parseValue("'42'"))
	assert.Equal(t, "bob", parseValue("bob"))
}

func TestParseSortKey(t *testing.T) {
	field, desc := parseSortKey("Age desc")
	assert.Equal(t, "Age", field)
	assert.True(t, desc)

	field, desc = parseSortKey("Age ASC")
	assert.Equal(t, "Age", field)
	assert.False(t, desc)

	field, desc = parseSortKey(" Name ")
	assert.Equal(t, "Name", field)
	assert.False(t, desc)
}

func TestRunQuery_CompileOnly(t *testing.T) {
	isolateEnv(t)
	f := defaultFlags()
	f.where = []string{"done=false"}
	f.selectList = "id, title"
	f.compileOnly = true

	var out bytes.Buffer
	require.NoError(t, runQuery(context.Background(), &out, "todo", f))
	assert.Equal(t, "$filter=done%20eq%20false&$select=id,title\n", out.String())
}

func TestRunQuery_JSON(t *testing.T) {
	isolateEnv(t)
	rows := make([]map[string]any, 7)
	for i := range rows {
		rows[i] = map[string]any{"id": fmt.Sprintf("t%d", i), "title": "task"}
	}
	srv := testserver.New(testserver.WithTable("todo", rows), testserver.WithPageSize(3))
	defer srv.Close()

	f := defaultFlags()
	f.endpoint = srv.URL()
	f.count = true
	f.selectList = "id"

	var out bytes.Buffer
	require.NoError(t, runQuery(context.Background(), &out, "todo", f))

	var res result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(7), *res.Count)
	require.Len(t, res.Items, 7)
	assert.Equal(t, map[string]any{"id": "t0"}, res.Items[0])
	assert.Len(t, srv.Requests(), 3)
}

func TestRunQuery_YAML(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.WithTable("todo", []map[string]any{{"id": "a"}}))
	defer srv.Close()

	f := defaultFlags()
	f.endpoint = srv.URL()
	f.format = "yaml"

	var out bytes.Buffer
	require.NoError(t, runQuery(context.Background(), &out, "todo", f))

	var res struct {
		Items []map[string]any `yaml:"items"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, []map[string]any{{"id": "a"}}, res.Items)
	assert.False(t, strings.Contains(out.String(), "count:"))
}

func TestRunQuery_Errors(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New()
	defer srv.Close()

	f := defaultFlags()
	f.format = "xml"
	assert.Error(t, runQuery(context.Background(), &bytes.Buffer{}, "todo", f))

	f = defaultFlags()
	assert.Error(t, runQuery(context.Background(), &bytes.Buffer{}, "todo", f), "endpoint is required")

	f.endpoint = srv.URL()
	assert.Error(t, runQuery(context.Background(), &bytes.Buffer{}, "missing", f))
}

func TestVersionCmd(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "datasync version dev")
}

func TestSelectFields(t *testing.T) {
	fields := selectFields(" a ,,b.c")
	require.Len(t, fields, 2)
	assert.Equal(t, "b.c", fields[1].(*query.Member).Path())
	assert.Empty(t, selectFields(""))
}
