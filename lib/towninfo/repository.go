package towninfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("easymap-backend/lib/towninfo")

const countyCacheFile = "county.json"

type cacheFile struct {
	CodeNameMap map[string]string `json:"code_name_map"`
	NameCodeMap map[string]string `json:"name_code_map"`
}

type RepositoryOptions struct {
	// CacheDir is where code tables are persisted, it is required.
	CacheDir string
	// defaults to an NLSCRegistry with default options
	Registry Registry
}

// Repository provides code tables, preferring the on-disk cache and
// falling back to the registry. a cache file, once written, is trusted
// until it is cleared with ClearCache.
type Repository struct {
	cacheDir string
	registry Registry
	inflight singleflight.Group
}

func NewRepository(opts RepositoryOptions) (*Repository, error) {
	if opts.CacheDir == "" {
		return nil, ErrCacheDirRequired
	}
	if opts.Registry == nil {
		opts.Registry = NewNLSCRegistry(RegistryOptions{})
	}
	return &Repository{
		cacheDir: opts.CacheDir,
		registry: opts.Registry,
	}, nil
}

func (r *Repository) CacheDir() string {
	return r.cacheDir
}

// CachePath returns the file a scope's table is cached at.
func (r *Repository) CachePath(scope Scope) string {
	if scope.Level == LevelTown {
		return filepath.Join(r.cacheDir, fmt.Sprintf("%s_town.json", scope.County))
	}
	return filepath.Join(r.cacheDir, countyCacheFile)
}

// Load returns the code table of scope. a nil table with a nil error means
// the registry has no entries for the scope, nothing is cached in that case.
//
// concurrent loads of the same scope share a single fetch.
func (r *Repository) Load(ctx context.Context, scope Scope) (*CodeTable, error) {
	ctx, span := tracer.Start(ctx, "Repository:Load")
	defer span.End()
	span.SetAttributes(attribute.String("towninfo.scope", scope.String()))

	err := scope.validate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid scope")
		return nil, err
	}

	table, ok := r.readCache(ctx, scope)
	if ok {
		span.SetAttributes(attribute.Bool("towninfo.cache_hit", true))
		return &table, nil
	}
	span.SetAttributes(attribute.Bool("towninfo.cache_hit", false))

	// the shared fetch outlives any single caller, each caller only stops
	// waiting for it when its own context is done.
	fetched := r.inflight.DoChan(scope.String(), func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), scope)
	})
	select {
	case <-ctx.Done():
		err := ctx.Err()
		span.RecordError(err)
		span.SetStatus(codes.Error, "gave up waiting for code table")
		return nil, err
	case res := <-fetched:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "failed to fetch code table")
			return nil, res.Err
		}
		return res.Val.(*CodeTable), nil
	}
}

func (r *Repository) fetch(ctx context.Context, scope Scope) (*CodeTable, error) {
	records, err := r.registry.Fetch(ctx, scope)
	if err != nil {
		var fetchErr *RemoteFetchError
		if !errors.As(err, &fetchErr) {
			err = &RemoteFetchError{Scope: scope, Err: err}
		}
		return nil, err
	}

	table := newCodeTableFromRecords(scope, records)
	if table.empty() {
		slog.WarnContext(ctx, "registry returned no entries", "scope", scope.String())
		return nil, nil
	}

	err = r.writeCache(table)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to write code table cache",
			"scope", scope.String(),
			"path", r.CachePath(scope),
			"err", err,
		)
	}
	return &table, nil
}

// Counties loads the county list.
func (r *Repository) Counties(ctx context.Context) (*CodeTable, error) {
	return r.Load(ctx, CountyScope())
}

// Towns loads the town list of a county.
func (r *Repository) Towns(ctx context.Context, county string) (*CodeTable, error) {
	return r.Load(ctx, TownScope(county))
}

// ClearCache removes the cache file of scope, it is not an error if there
// is no such file.
func (r *Repository) ClearCache(scope Scope) error {
	err := scope.validate()
	if err != nil {
		return err
	}
	err = os.Remove(r.CachePath(scope))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// readCache treats every kind of unusable cache file as a miss.
func (r *Repository) readCache(ctx context.Context, scope Scope) (CodeTable, bool) {
	path := r.CachePath(scope)
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CodeTable{}, false
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to read code table cache", "path", path, "err", err)
		return CodeTable{}, false
	}

	var cached cacheFile
	err = json.Unmarshal(contents, &cached)
	if err != nil {
		slog.WarnContext(ctx, "discarding malformed code table cache", "path", path, "err", err)
		return CodeTable{}, false
	}
	if len(cached.CodeNameMap) == 0 || len(cached.NameCodeMap) == 0 {
		slog.WarnContext(ctx, "discarding empty code table cache", "path", path)
		return CodeTable{}, false
	}

	return CodeTable{
		scope:      scope,
		codeToName: cached.CodeNameMap,
		nameToCode: cached.NameCodeMap,
	}, true
}

// writeCache writes through a temporary file so concurrent readers never
// observe a partially written table.
func (r *Repository) writeCache(table CodeTable) error {
	err := os.MkdirAll(r.cacheDir, 0755)
	if err != nil {
		return err
	}

	serialized, err := json.Marshal(cacheFile{
		CodeNameMap: table.codeToName,
		NameCodeMap: table.nameToCode,
	})
	if err != nil {
		return err
	}

	path := r.CachePath(table.scope)
	tmp, err := os.CreateTemp(r.cacheDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	_, err = tmp.Write(serialized)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
