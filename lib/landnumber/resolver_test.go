package landnumber

import (
	"context"
	"easymap-backend/lib/scrapers/easymap"
	"easymap-backend/lib/scrapers/easymap/easymaptest"
	"easymap-backend/lib/testutil"
	"easymap-backend/lib/towninfo"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTowns struct {
	table *towninfo.CodeTable
	err   error
	calls atomic.Int64
}

func (f *fakeTowns) Towns(_ context.Context, county string) (*towninfo.CodeTable, error) {
	f.calls.Add(1)
	return f.table, f.err
}

func newTaipeiTowns() *towninfo.CodeTable {
	table := towninfo.NewCodeTable(
		towninfo.TownScope("F"),
		map[string]string{"F01": "新莊區", "F02": "林口區"},
		map[string]string{"新莊區": "F01", "林口區": "F02"},
	)
	return &table
}

func TestResolve(t *testing.T) {
	portal := easymaptest.NewPortal(t, easymaptest.Config{CityCode: "F", TownCode: "F01"})
	towns := &fakeTowns{table: newTaipeiTowns()}
	resolver := NewResolver(towns, easymap.SessionOptions{BaseURL: portal.URL})

	result, err := resolver.Resolve(context.Background(), 121.4321, 25.0354)
	require.NoError(t, err)
	require.Equal(t, "F01", result.Code)
	require.NotNil(t, result.Name)
	require.Equal(t, "新莊區", *result.Name)
	require.Equal(t, "新莊區(F01)", result.String())

	require.EqualValues(t, 1, towns.calls.Load())
	require.Equal(t, 1, portal.Requests("/Index"))
	require.Equal(t, 1, portal.Requests("/Door_json_getDoorInfoByXY"))
	require.Equal(t, "F", portal.DoorInfoForm().Get("city"))
}

func TestResolveUnknownTownCode(t *testing.T) {
	portal := easymaptest.NewPortal(t, easymaptest.Config{CityCode: "F", TownCode: "F99"})
	resolver := NewResolver(&fakeTowns{table: newTaipeiTowns()}, easymap.SessionOptions{BaseURL: portal.URL})

	result, err := resolver.Resolve(context.Background(), 121.4321, 25.0354)
	require.NoError(t, err)
	require.Equal(t, "F99", result.Code)
	require.Nil(t, result.Name)
	require.Equal(t, "None(F99)", result.String())

	serialized, err := json.Marshal(result)
	require.NoError(t, err)
	require.JSONEq(t, `{"name": null, "code": "F99"}`, string(serialized))
}

func TestResolveNoTownTable(t *testing.T) {
	portal := easymaptest.NewPortal(t, easymaptest.Config{CityCode: "F", TownCode: "F01"})
	resolver := NewResolver(&fakeTowns{}, easymap.SessionOptions{BaseURL: portal.URL})

	_, err := resolver.Resolve(context.Background(), 121.4321, 25.0354)
	var resolutionErr *ResolutionError
	require.True(t, errors.As(err, &resolutionErr))
	require.Equal(t, "F", resolutionErr.CityCode)
	require.Contains(t, resolutionErr.Error(), "no town table for city code")
	require.Equal(t, 0, portal.Requests("/Door_json_getDoorInfoByXY"))
}

func TestResolveTownTableFailure(t *testing.T) {
	portal := easymaptest.NewPortal(t, easymaptest.Config{CityCode: "F", TownCode: "F01"})
	towns := &fakeTowns{err: &towninfo.RemoteFetchError{
		Scope: towninfo.TownScope("F"),
		Err:   errors.New("connection refused"),
	}}
	resolver := NewResolver(towns, easymap.SessionOptions{BaseURL: portal.URL})

	_, err := resolver.Resolve(context.Background(), 121.4321, 25.0354)
	var fetchErr *towninfo.RemoteFetchError
	require.True(t, errors.As(err, &fetchErr))
}

func TestResolveMissingTownCode(t *testing.T) {
	portal := easymaptest.NewPortal(t, easymaptest.Config{
		CityCode:     "F",
		DoorInfoBody: `{"sectno": "0193"}`,
	})
	resolver := NewResolver(&fakeTowns{table: newTaipeiTowns()}, easymap.SessionOptions{BaseURL: portal.URL})

	_, err := resolver.Resolve(context.Background(), 121.4321, 25.0354)
	var sessionErr *easymap.SessionError
	require.True(t, errors.As(err, &sessionErr))
}

func TestResolveSessionFailure(t *testing.T) {
	portal := easymaptest.NewPortal(t, easymaptest.Config{NoSessionCookie: true})
	towns := &fakeTowns{table: newTaipeiTowns()}
	resolver := NewResolver(towns, easymap.SessionOptions{BaseURL: portal.URL})

	_, err := resolver.Resolve(context.Background(), 121.4321, 25.0354)
	var sessionErr *easymap.SessionError
	require.True(t, errors.As(err, &sessionErr))
	require.EqualValues(t, 0, towns.calls.Load())
}

func TestResolveWithRepository(t *testing.T) {
	registry := testutil.NewRegistry(t, testutil.DefaultRegistry)

	repo, err := towninfo.NewRepository(towninfo.RepositoryOptions{
		CacheDir: t.TempDir(),
		Registry: towninfo.NewNLSCRegistry(towninfo.RegistryOptions{BaseURL: registry.URL}),
	})
	require.NoError(t, err)

	portal := easymaptest.NewPortal(t, easymaptest.Config{CityCode: "F", TownCode: "F02"})
	resolver := NewResolver(repo, easymap.SessionOptions{BaseURL: portal.URL})

	for i := 0; i < 2; i++ {
		result, err := resolver.Resolve(context.Background(), 121.3789, 25.0772)
		require.NoError(t, err)
		require.Equal(t, "林口區(F02)", result.String())
	}
	// the second resolution is served from the cache
	require.Equal(t, 1, registry.Requests())
	require.Equal(t, 2, portal.Requests("/Index"))
}
