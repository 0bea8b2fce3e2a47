package towninfo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t testing.TB, server *fakeRegistryServer) *Repository {
	repo, err := NewRepository(RepositoryOptions{
		CacheDir: t.TempDir(),
		Registry: NewNLSCRegistry(RegistryOptions{BaseURL: server.URL}),
	})
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestNewRepositoryRequiresCacheDir(t *testing.T) {
	_, err := NewRepository(RepositoryOptions{})
	require.ErrorIs(t, err, ErrCacheDirRequired)
}

func TestCachePath(t *testing.T) {
	repo, err := NewRepository(RepositoryOptions{CacheDir: "/tmp/easymap"})
	require.NoError(t, err)

	require.Equal(t, filepath.Join("/tmp/easymap", "county.json"), repo.CachePath(CountyScope()))
	require.Equal(t, filepath.Join("/tmp/easymap", "F_town.json"), repo.CachePath(TownScope("F")))
	// pure: calling it creates nothing
	require.False(t, fileExists("/tmp/easymap/F_town.json"))
}

func TestLoadCountyWithoutCache(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)
	ctx := context.Background()

	err := repo.ClearCache(CountyScope())
	require.NoError(t, err)
	require.False(t, fileExists(repo.CachePath(CountyScope())))

	counties, err := repo.Counties(ctx)
	require.NoError(t, err)
	require.NotNil(t, counties)

	code, _ := counties.Name2Code("基隆市")
	require.Equal(t, "C", code)
	code, _ = counties.Name2Code("新北市")
	require.Equal(t, "F", code)
	_, ok := counties.Name2Code("無代碼")
	require.False(t, ok)

	require.True(t, fileExists(repo.CachePath(CountyScope())))

	err = repo.ClearCache(CountyScope())
	require.NoError(t, err)
	require.False(t, fileExists(repo.CachePath(CountyScope())))
}

func TestLoadTownRoundTrip(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)
	ctx := context.Background()

	towns, err := repo.Towns(ctx, "F")
	require.NoError(t, err)
	require.NotNil(t, towns)

	name, _ := towns.Code2Name("F01")
	require.Equal(t, "新莊區", name)
	code, _ := towns.Name2Code("新莊區")
	require.Equal(t, "F01", code)
	require.EqualValues(t, 1, server.requests.Load())

	// no network from here on
	server.Close()

	cached, err := repo.Towns(ctx, "F")
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.Empty(t, cmp.Diff(towns.CodeToName(), cached.CodeToName()))
	require.Empty(t, cmp.Diff(towns.NameToCode(), cached.NameToCode()))
	require.Equal(t, TownScope("F"), cached.Scope())
	requireInverses(t, *cached)
}

func TestClearCacheIdempotent(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)

	_, err := repo.Towns(context.Background(), "F")
	require.NoError(t, err)
	require.True(t, fileExists(repo.CachePath(TownScope("F"))))

	require.NoError(t, repo.ClearCache(TownScope("F")))
	require.NoError(t, repo.ClearCache(TownScope("F")))
	require.False(t, fileExists(repo.CachePath(TownScope("F"))))
}

func TestLoadMalformedCacheIsMiss(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)
	ctx := context.Background()

	table := []string{
		`{not json`,
		`{"code_name_map": {}, "name_code_map": {}}`,
		`{"code_name_map": {"F01": "新莊區"}}`,
	}

	for i, contents := range table {
		err := os.WriteFile(repo.CachePath(TownScope("F")), []byte(contents), 0644)
		require.NoError(t, err)

		towns, err := repo.Towns(ctx, "F")
		require.NoError(t, err)
		require.NotNil(t, towns)
		require.Equal(t, 2, towns.Len())
		require.EqualValues(t, i+1, server.requests.Load())
	}
}

func TestLoadEmptyFetchIsAbsent(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)

	towns, err := repo.Towns(context.Background(), "Z")
	require.NoError(t, err)
	require.Nil(t, towns)
	require.False(t, fileExists(repo.CachePath(TownScope("Z"))))
}

func TestLoadRemoteFailure(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)

	_, err := repo.Towns(context.Background(), "E")
	var fetchErr *RemoteFetchError
	require.True(t, errors.As(err, &fetchErr))
	require.False(t, fileExists(repo.CachePath(TownScope("E"))))
}

type failingRegistry struct{}

func (failingRegistry) Fetch(context.Context, Scope) ([]Record, error) {
	return nil, errors.New("connection reset")
}

func TestLoadWrapsForeignRegistryErrors(t *testing.T) {
	repo, err := NewRepository(RepositoryOptions{
		CacheDir: t.TempDir(),
		Registry: failingRegistry{},
	})
	require.NoError(t, err)

	_, err = repo.Counties(context.Background())
	var fetchErr *RemoteFetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, CountyScope(), fetchErr.Scope)
}

func TestConcurrentLoad(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			towns, err := repo.Towns(context.Background(), "F")
			if err != nil || towns == nil || towns.Len() != 2 {
				t.Errorf("unexpected load result: %v %v", towns, err)
			}
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(repo.CacheDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "F_town.json", entries[0].Name())
}

type blockingRegistry struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRegistry) Fetch(ctx context.Context, scope Scope) ([]Record, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []Record{{Code: "F01", Name: "新莊區"}}, nil
}

func TestLoadCancelledCallerDoesNotFailOthers(t *testing.T) {
	registry := &blockingRegistry{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	repo, err := NewRepository(RepositoryOptions{CacheDir: t.TempDir(), Registry: registry})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := repo.Towns(ctx, "F")
		firstErr <- err
	}()
	<-registry.started

	type loaded struct {
		table *CodeTable
		err   error
	}
	second := make(chan loaded, 1)
	go func() {
		table, err := repo.Towns(context.Background(), "F")
		second <- loaded{table: table, err: err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(registry.release)
	result := <-second
	require.NoError(t, result.err)
	require.NotNil(t, result.table)
	name, ok := result.table.Code2Name("F01")
	require.True(t, ok)
	require.Equal(t, "新莊區", name)
	require.True(t, fileExists(repo.CachePath(TownScope("F"))))
}

func TestInvalidCountyCode(t *testing.T) {
	server := newFakeRegistryServer(t)
	repo := newTestRepository(t, server)

	outside := filepath.Join(filepath.Dir(repo.CacheDir()), "x_town.json")
	err := os.WriteFile(outside, []byte("{}"), 0644)
	require.NoError(t, err)

	for _, county := range []string{"", "../x", "F/..", `..\x`, "F 1"} {
		_, err := repo.Towns(context.Background(), county)
		require.ErrorIs(t, err, ErrInvalidCounty, county)

		err = repo.ClearCache(TownScope(county))
		require.ErrorIs(t, err, ErrInvalidCounty, county)
	}
	require.True(t, fileExists(outside))
	require.NoError(t, repo.ClearCache(CountyScope()))
}
