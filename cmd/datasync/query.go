package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixml/datasync"
	"github.com/helixml/datasync/application/paging"
	"github.com/helixml/datasync/domain/query"
	"github.com/helixml/datasync/infrastructure/odata"
	"github.com/helixml/datasync/internal/config"
	"github.com/helixml/datasync/internal/log"
)

// record is the untyped row shape used by the CLI.
type record = map[string]any

type queryFlags struct {
	envFile     string
	endpoint    string
	pageSize    int
	where       []string
	contains    []string
	orderBy     string
	orderByDesc string
	thenBy      []string
	skip        int
	take        int
	selectList  string
	count       bool
	deleted     bool
	params      []string
	format      string
	compileOnly bool
}

func queryCmd() *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Query a table and print the matching records",
		Long: `Query a table and print the matching records.

Filters given with --where and --contains are combined with "and". Values
are typed as null, true, false, integers or floats when they parse as such;
wrap a value in single quotes to force a string.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  DATASYNC_ENDPOINT        Service base URL
  DATASYNC_PAGE_SIZE       Preferred records per page (default: server decides)
  DATASYNC_TIMEOUT         Request timeout in seconds (default: 30)
  DATASYNC_MAX_RETRIES     Retry attempts per page (default: 3)
  DATASYNC_INITIAL_DELAY   First retry delay in seconds (default: 0.5)
  DATASYNC_API_VERSION     ZUMO-API-VERSION header (default: 3.0.0)
  DATASYNC_HTTP_CACHE_DIR  Cache GET responses in this directory
  DATASYNC_LOG_LEVEL       Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  DATASYNC_LOG_FORMAT      Log format: pretty, json (default: pretty)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runQuery(ctx, cmd.OutOrStdout(), args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	fl.StringVar(&f.endpoint, "endpoint", "", "Service base URL (overrides DATASYNC_ENDPOINT)")
	fl.IntVar(&f.pageSize, "page-size", 0, "Preferred records per page (overrides DATASYNC_PAGE_SIZE)")
	fl.StringArrayVar(&f.where, "where", nil, "Equality filter field=value (repeatable)")
	fl.StringArrayVar(&f.contains, "contains", nil, "Substring filter field=value (repeatable)")
	fl.StringVar(&f.orderBy, "order-by", "", "Sort ascending by field")
	fl.StringVar(&f.orderByDesc, "order-by-desc", "", "Sort descending by field")
	fl.StringArrayVar(&f.thenBy, "then-by", nil, `Secondary sort "field" or "field desc" (repeatable)`)
	fl.IntVar(&f.skip, "skip", 0, "Number of records to skip")
	fl.IntVar(&f.take, "take", -1, "Maximum number of records to return (-1 for all)")
	fl.StringVar(&f.selectList, "select", "", "Comma-separated fields to return")
	fl.BoolVar(&f.count, "count", false, "Request and print the total count")
	fl.BoolVar(&f.deleted, "deleted", false, "Include soft-deleted records")
	fl.StringArrayVar(&f.params, "param", nil, "Extra query parameter key=value (repeatable)")
	fl.StringVar(&f.format, "format", "json", "Output format: json or yaml")
	fl.BoolVar(&f.compileOnly, "compile-only", false, "Print the compiled query string and exit")

	return cmd
}

// result is the printed output of a query.
type result struct {
	Count *int64   `json:"count,omitempty" yaml:"count,omitempty"`
	Items []record `json:"items" yaml:"items"`
}

func runQuery(ctx context.Context, out io.Writer, table string, f queryFlags) error {
	if f.format != "json" && f.format != "yaml" {
		return fmt.Errorf("unsupported format %q: want json or yaml", f.format)
	}

	q, err := buildQuery(f)
	if err != nil {
		return err
	}
	projection := selectFields(f.selectList)

	var opts []config.Option
	if f.endpoint != "" {
		opts = append(opts, config.WithEndpoint(f.endpoint))
	}
	if f.pageSize > 0 {
		opts = append(opts, config.WithPageSize(f.pageSize))
	}
	cfg, err := loadConfig(f.envFile, opts...)
	if err != nil {
		return err
	}
	logger := log.Configure(cfg)

	if f.compileOnly {
		return printCompiled(out, q, projection)
	}

	client, err := datasync.New("", datasync.WithConfig(cfg), datasync.WithLogger(logger.Slog()))
	if err != nil {
		return err
	}
	tbl, err := datasync.GetTable[record](client, table)
	if err != nil {
		return err
	}

	var p *paging.Pageable[record]
	if len(projection) > 0 {
		p, err = datasync.ToPageableSelection(ctx, tbl, query.Select[record, record](q, projection...))
	} else {
		p, err = tbl.ToPageable(ctx, q)
	}
	if err != nil {
		return err
	}

	res := result{Items: []record{}}
	for item, err := range p.All() {
		if err != nil {
			return err
		}
		res.Items = append(res.Items, item)
	}
	if p.Canceled() {
		return ctx.Err()
	}
	if n, ok := p.TotalCount(); ok {
		res.Count = &n
	}

	logger.InfoContext(log.WithTable(ctx, table), "query complete",
		"items", len(res.Items),
		"pages", p.Fetches(),
	)
	return write(out, f.format, res)
}

func printCompiled(out io.Writer, q query.Query[record], projection []query.Expression) error {
	var d query.Descriptor
	if len(projection) > 0 {
		d = query.Select[record, record](q, projection...).Descriptor()
	} else {
		d = q.Descriptor()
	}
	req, err := odata.Compile(d)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, req)
	return err
}

func write(out io.Writer, format string, v result) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// buildQuery translates command flags into a query.
func buildQuery(f queryFlags) (query.Query[record], error) {
	q := query.New[record]()

	for _, w := range f.where {
		field, value, err := splitPair("--where", w)
		if err != nil {
			return q, err
		}
		q = q.Where(query.Eq(query.Field(field), query.Value(parseValue(value))))
	}
	for _, c := range f.contains {
		field, value, err := splitPair("--contains", c)
		if err != nil {
			return q, err
		}
		q = q.Where(query.Contains(query.Field(field), query.Value(unquote(value))))
	}

	switch {
	case f.orderBy != "" && f.orderByDesc != "":
		return q, fmt.Errorf("--order-by and --order-by-desc are mutually exclusive")
	case f.orderBy != "":
		q = q.OrderBy(query.Field(f.orderBy))
	case f.orderByDesc != "":
		q = q.OrderByDescending(query.Field(f.orderByDesc))
	}
	for _, t := range f.thenBy {
		field, desc := parseSortKey(t)
		if desc {
			q = q.ThenByDescending(query.Field(field))
		} else {
			q = q.ThenBy(query.Field(field))
		}
	}

	if f.skip != 0 {
		q = q.Skip(f.skip)
	}
	if f.take != -1 {
		q = q.Take(f.take)
	}
	q = q.IncludeTotalCount(f.count).IncludeDeletedItems(f.deleted)

	for _, p := range f.params {
		key, value, err := splitPair("--param", p)
		if err != nil {
			return q, err
		}
		q = q.WithParameter(key, value)
	}

	return q, q.Err()
}

func selectFields(list string) []query.Expression {
	var out []query.Expression
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, query.Field(name))
		}
	}
	return out
}

func splitPair(flag, s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%s: expected key=value, got %q", flag, s)
	}
	return key, value, nil
}

func parseSortKey(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) == 2 && strings.EqualFold(fields[1], "desc") {
		return fields[0], true
	}
	if len(fields) == 2 && strings.EqualFold(fields[1], "asc") {
		return fields[0], false
	}
	return strings.TrimSpace(s), false
}

// parseValue types a flag value. Quoted values are always strings.
func parseValue(s string) any {
	if u := unquote(s); u != s {
		return u
	}
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if strings.ContainsAny(s, "0123456789") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
