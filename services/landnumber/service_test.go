package landnumber

import (
	"context"
	"easymap-backend/lib/landnumber"
	"easymap-backend/lib/scrapers/easymap"
	"easymap-backend/lib/scrapers/easymap/easymaptest"
	"easymap-backend/lib/testutil"
	"easymap-backend/lib/towninfo"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	result landnumber.LandNumber
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, x, y float64) (landnumber.LandNumber, error) {
	f.calls++
	return f.result, f.err
}

func get(t testing.TB, handler http.Handler, path string, query url.Values) (int, string) {
	t.Helper()
	target := path
	if query != nil {
		target += "?" + query.Encode()
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func point(longitude, latitude string) url.Values {
	return url.Values{"longitude": {longitude}, "latitude": {latitude}}
}

func TestRoot(t *testing.T) {
	service := NewService(&fakeResolver{})
	status, body := get(t, service.Routes(), "/", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{}`, body)
}

func TestInvalidQuery(t *testing.T) {
	testCases := []struct {
		name  string
		query url.Values
	}{
		{name: "missing", query: url.Values{}},
		{name: "missing latitude", query: url.Values{"longitude": {"121.5"}}},
		{name: "not a number", query: point("east", "25")},
		{name: "west of taiwan", query: point("119.9", "25")},
		{name: "north of taiwan", query: point("121.5", "26")},
		{name: "on the western edge", query: point("120.035141", "23")},
		{name: "on the northern edge", query: point("121.5", "25.298401")},
		{name: "nan", query: point("NaN", "23")},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			resolver := &fakeResolver{}
			service := NewService(resolver)
			status, body := get(t, service.Routes(), "/landnumber", test.query)
			require.Equal(t, http.StatusUnprocessableEntity, status)
			require.Contains(t, body, `"error"`)
			require.Equal(t, 0, resolver.calls)
		})
	}
}

func TestResolveResponses(t *testing.T) {
	name := "新莊區"

	testCases := []struct {
		name     string
		resolver *fakeResolver
		status   int
		body     string
	}{
		{
			name:     "resolved",
			resolver: &fakeResolver{result: landnumber.LandNumber{Name: &name, Code: "F01"}},
			status:   http.StatusOK,
			body:     `{"name": "新莊區", "code": "F01"}`,
		},
		{
			name:     "unnamed town",
			resolver: &fakeResolver{result: landnumber.LandNumber{Code: "F99"}},
			status:   http.StatusOK,
			body:     `{"name": null, "code": "F99"}`,
		},
		{
			name:     "no town table",
			resolver: &fakeResolver{err: &landnumber.ResolutionError{CityCode: "Z", Message: "no town table for city code"}},
			status:   http.StatusOK,
			body:     `null`,
		},
		{
			name:     "portal failure",
			resolver: &fakeResolver{err: &easymap.SessionError{Message: "no session cookie", Status: 200}},
			status:   http.StatusBadGateway,
			body:     `{"error": "Bad Gateway"}`,
		},
		{
			name: "registry failure",
			resolver: &fakeResolver{err: &towninfo.RemoteFetchError{
				Scope: towninfo.TownScope("F"),
				Err:   errors.New("connection refused"),
			}},
			status: http.StatusBadGateway,
			body:   `{"error": "Bad Gateway"}`,
		},
		{
			name:     "anything else",
			resolver: &fakeResolver{err: errors.New("boom")},
			status:   http.StatusInternalServerError,
			body:     `{"error": "Internal Server Error"}`,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			service := NewService(test.resolver)
			status, body := get(t, service.Routes(), "/landnumber", point("121.4321", "25.0354"))
			require.Equal(t, test.status, status)
			require.JSONEq(t, test.body, body)
			require.Equal(t, 1, test.resolver.calls)
		})
	}
}

func TestMetrics(t *testing.T) {
	service := NewService(&fakeResolver{err: &landnumber.ResolutionError{CityCode: "Z"}})
	routes := service.Routes()

	get(t, routes, "/landnumber", point("121.4321", "25.0354"))
	get(t, routes, "/landnumber", point("0", "0"))

	status, body := get(t, routes, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "landnumber_requests_total 2")
	require.Contains(t, body, "landnumber_empty_results_total 1")
	require.Contains(t, body, `landnumber_failures_total{kind="invalid_query"} 1`)
}

func TestServiceEndToEnd(t *testing.T) {
	registry := testutil.NewRegistry(t, testutil.DefaultRegistry)

	repo, err := towninfo.NewRepository(towninfo.RepositoryOptions{
		CacheDir: t.TempDir(),
		Registry: towninfo.NewNLSCRegistry(towninfo.RegistryOptions{BaseURL: registry.URL}),
	})
	require.NoError(t, err)

	portal := easymaptest.NewPortal(t, easymaptest.Config{CityCode: "F", TownCode: "F01"})
	service := NewService(landnumber.NewResolver(repo, easymap.SessionOptions{BaseURL: portal.URL}))

	status, body := get(t, service.Routes(), "/landnumber", point("121.4321", "25.0354"))
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"name": "新莊區", "code": "F01"}`, body)

	empty := easymaptest.NewPortal(t, easymaptest.Config{CityCode: "Z", TownCode: "Z01"})
	service = NewService(landnumber.NewResolver(repo, easymap.SessionOptions{BaseURL: empty.URL}))

	status, body = get(t, service.Routes(), "/landnumber", point("121.4321", "25.0354"))
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `null`, body)
}
