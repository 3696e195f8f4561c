package datasync_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/helixml/datasync"
	"github.com/helixml/datasync/application/paging"
	"github.com/helixml/datasync/domain/query"
	"github.com/helixml/datasync/infrastructure/transport"
	"github.com/helixml/datasync/internal/log"
	"github.com/helixml/datasync/internal/testserver"
)

type person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type summary struct {
	Name string `json:"name"`
}

func seed(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{"id": fmt.Sprintf("p%02d", i), "name": fmt.Sprintf("person %d", i), "age": 20 + i}
	}
	return rows
}

func newClient(t *testing.T, srv *testserver.Server, opts ...datasync.Option) *datasync.Client {
	t.Helper()
	opts = append([]datasync.Option{
		datasync.WithHTTPClient(srv.Client()),
		datasync.WithInitialDelay(time.Millisecond),
		datasync.WithLogger(log.Discard().Slog()),
	}, opts...)
	c, err := datasync.New(srv.URL(), opts...)
	require.NoError(t, err)
	return c
}

func peopleTable(t *testing.T, c *datasync.Client) *datasync.Table[person] {
	t.Helper()
	tbl, err := datasync.GetTable[person](c, "people")
	require.NoError(t, err)
	return tbl
}

func TestNew_Validation(t *testing.T) {
	_, err := datasync.New("")
	assert.Error(t, err)

	_, err = datasync.New("ftp://example.com")
	assert.Error(t, err)

	c, err := datasync.New("https://example.com", datasync.WithPageSize(25), datasync.WithLogger(log.Discard().Slog()))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", c.Endpoint())
	assert.Equal(t, 25, c.Config().PageSize())

	_, err = datasync.GetTable[person](c, "")
	var invalid *query.InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("DATASYNC_ENDPOINT", "https://env.example.com")
	t.Setenv("DATASYNC_PAGE_SIZE", "40")

	c, err := datasync.NewFromEnv("", datasync.WithMaxRetries(0), datasync.WithLogger(log.Discard().Slog()))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", c.Endpoint())
	assert.Equal(t, 40, c.Config().PageSize())
	assert.Equal(t, 0, c.Config().MaxRetries())
}

func TestTable_ToPageable_PagesThroughServer(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(25)), testserver.WithPageSize(10))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))

	p, err := tbl.ToPageable(context.Background(), tbl.Query().IncludeTotalCount(true))
	require.NoError(t, err)
	assert.Empty(t, srv.Requests(), "materialization is lazy")

	var ids []string
	for p.Next() {
		ids = append(ids, p.Item().ID)
	}
	require.NoError(t, p.Err())
	assert.Len(t, ids, 25)
	assert.Equal(t, "p00", ids[0])
	assert.Equal(t, "p24", ids[24])
	assert.Equal(t, 3, p.Fetches())
	assert.Equal(t, paging.StateExhausted, p.State())

	count, ok := p.TotalCount()
	require.True(t, ok)
	assert.Equal(t, int64(25), count)

	requests := srv.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, "$count=true", requests[0].RawQuery)
	assert.Equal(t, "$skip=10&$top=10&$count=true", requests[1].RawQuery)
	assert.Equal(t, "$skip=20&$top=10&$count=true", requests[2].RawQuery)
}

func TestTable_ToPageable_TakeAboveServerPageSize(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(40)), testserver.WithPageSize(10))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))

	got, err := tbl.ToSlice(context.Background(), tbl.Query().Take(23))
	require.NoError(t, err)
	assert.Len(t, got, 23)
	assert.Equal(t, "p22", got[22].ID)

	requests := srv.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, "$top=23", requests[0].RawQuery)
	assert.Equal(t, "$skip=10&$top=10", requests[1].RawQuery)
	assert.Equal(t, "$skip=20&$top=3", requests[2].RawQuery)
}

func TestTable_ToPageable_FollowsNextLinks(t *testing.T) {
	srv := testserver.New(
		testserver.WithTable("people", seed(25)),
		testserver.WithPageSize(10),
		testserver.WithNextLinks(),
	)
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))

	got, err := tbl.ToSlice(context.Background(), tbl.Query().OrderBy(query.Field("name")))
	require.NoError(t, err)
	assert.Len(t, got, 25)
	assert.Len(t, srv.Requests(), 3)
	assert.Equal(t, "name asc", srv.Requests()[2].Query.Get("$orderby"))
}

func TestTable_ToPageable_CompiledQuery(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(5)))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv, datasync.WithPageSize(50)))

	q := tbl.Query().
		Where(query.Eq(query.Field("Name"), query.Value("bob"))).
		Where(query.Gt(query.Field("Age"), query.Value(5))).
		Skip(1).
		Take(3).
		IncludeDeletedItems(true).
		WithParameter("tenant", "a&b")

	got, err := tbl.ToSlice(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "(Name eq 'bob') and (Age gt 5)", requests[0].Query.Get("$filter"))
	assert.Equal(t, "1", requests[0].Query.Get("$skip"))
	assert.Equal(t, "3", requests[0].Query.Get("$top"))
	assert.Equal(t, "true", requests[0].Query.Get("__includedeleted"))
	assert.Equal(t, "a&b", requests[0].Query.Get("tenant"))
}

func TestTable_ToPageable_BuildErrorBeforeNetwork(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(5)))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))

	_, err := tbl.ToPageable(context.Background(), tbl.Query().Skip(-1))
	var invalid *query.InvalidArgumentError
	require.ErrorAs(t, err, &invalid)

	_, err = tbl.ToPageable(context.Background(), tbl.Query().Where(query.Eq(
		&query.Binary{Op: query.OpAdd, Left: query.Field("Age"), Right: query.Value(1)},
		query.Value(5),
	)))
	var unsupported *query.UnsupportedExpressionError
	require.ErrorAs(t, err, &unsupported)

	assert.Empty(t, srv.Requests())
}

func TestToPageableSelection(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(4)))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))

	sel := query.Select[person, summary](tbl.Query().OrderBy(query.Field("name")), query.Field("name")).Take(2)
	p, err := datasync.ToPageableSelection(context.Background(), tbl, sel)
	require.NoError(t, err)

	var names []string
	for s, err := range p.All() {
		require.NoError(t, err)
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"person 0", "person 1"}, names)
	assert.Equal(t, "name", srv.Requests()[0].Query.Get("$select"))
}

func TestTable_Cancellation(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(25)), testserver.WithPageSize(10))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, err := tbl.ToPageable(ctx, tbl.Query())
	require.NoError(t, err)

	var n int
	for p.Next() {
		n++
		if n == 10 {
			cancel()
		}
	}
	assert.Equal(t, 10, n)
	assert.True(t, p.Canceled())
	assert.NoError(t, p.Err())
	assert.Len(t, srv.Requests(), 1)
}

func TestTable_TransportErrorSurfaces(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(25)), testserver.WithPageSize(10))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv, datasync.WithMaxRetries(0)))

	p, err := tbl.ToPageable(context.Background(), tbl.Query())
	require.NoError(t, err)
	require.True(t, p.Next())
	srv.FailNext(http.StatusInternalServerError, 1)
	for p.Next() {
	}

	var te *transport.Error
	require.ErrorAs(t, p.Err(), &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode())
	assert.Equal(t, paging.StateFailed, p.State())
}

func TestTable_Count(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(12)))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))

	n, err := tbl.Count(context.Background(), tbl.Query().Take(5))
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "$top=0&$count=true", requests[0].RawQuery)
}

func TestTable_CountUnavailable(t *testing.T) {
	c, err := datasync.New("", datasync.WithTransportFactory(func(string) (paging.Transport, error) {
		return paging.TransportFunc(func(context.Context, paging.PageRequest) (paging.Page, error) {
			return paging.Page{}, nil
		}), nil
	}), datasync.WithLogger(log.Discard().Slog()))
	require.NoError(t, err)
	tbl, err := datasync.GetTable[person](c, "people")
	require.NoError(t, err)

	_, err = tbl.Count(context.Background(), tbl.Query())
	assert.True(t, errors.Is(err, datasync.ErrCountUnavailable))
}

func TestTable_ConcurrentIterations(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(25)), testserver.WithPageSize(10))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv))
	q := tbl.Query().OrderBy(query.Field("id"))

	const workers = 8
	results := make([][]person, workers)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range workers {
		g.Go(func() error {
			got, err := tbl.ToSlice(ctx, q)
			results[i] = got
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, got := range results {
		assert.Len(t, got, 25)
		assert.Equal(t, results[0], got)
	}
	assert.Len(t, srv.Requests(), workers*3)
}

func TestClient_HTTPCache(t *testing.T) {
	srv := testserver.New(testserver.WithTable("people", seed(3)))
	defer srv.Close()
	tbl := peopleTable(t, newClient(t, srv, datasync.WithHTTPCacheDir(t.TempDir())))

	for range 2 {
		got, err := tbl.ToSlice(context.Background(), tbl.Query())
		require.NoError(t, err)
		assert.Len(t, got, 3)
	}
	assert.Len(t, srv.Requests(), 2, "first run fetches twice, second is served from cache")
}
