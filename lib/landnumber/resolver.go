package landnumber

import (
	"context"
	"easymap-backend/lib/scrapers/easymap"
	"easymap-backend/lib/towninfo"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("easymap-backend/lib/landnumber")

// TownTables is the part of towninfo.Repository the resolver uses.
type TownTables interface {
	Towns(ctx context.Context, county string) (*towninfo.CodeTable, error)
}

// Resolver turns coordinates into land numbers, each resolution runs on
// its own portal session.
type Resolver struct {
	towns   TownTables
	session easymap.SessionOptions
}

func NewResolver(towns TownTables, session easymap.SessionOptions) *Resolver {
	return &Resolver{towns: towns, session: session}
}

// Resolve opens a portal session, resolves (x, y) with it and closes it.
func (r *Resolver) Resolve(ctx context.Context, x, y float64) (LandNumber, error) {
	var result LandNumber
	err := easymap.WithSession(ctx, r.session, func(s *easymap.Session) error {
		var err error
		result, err = r.ResolveWithSession(ctx, s, x, y)
		return err
	})
	return result, err
}

// ResolveWithSession resolves (x, y) using an already established session.
// The town table load and the token request do not depend on each other
// and run concurrently.
func (r *Resolver) ResolveWithSession(ctx context.Context, s *easymap.Session, x, y float64) (LandNumber, error) {
	ctx, span := tracer.Start(ctx, "Resolver:Resolve")
	defer span.End()
	span.SetAttributes(attribute.Float64("landnumber.x", x), attribute.Float64("landnumber.y", y))

	cityCode, err := s.GetCityCode(ctx, x, y)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get city code")
		return LandNumber{}, err
	}

	var (
		towns *towninfo.CodeTable
		token map[string]string
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		towns, err = r.towns.Towns(groupCtx, cityCode)
		if err != nil {
			return err
		}
		if towns == nil {
			return &ResolutionError{CityCode: cityCode, Message: "no town table for city code"}
		}
		return nil
	})
	group.Go(func() error {
		var err error
		token, err = s.GetToken(groupCtx)
		return err
	})
	err = group.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to prepare door info lookup")
		return LandNumber{}, err
	}

	info, err := s.GetDoorInfo(ctx, x, y, cityCode, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get door info")
		return LandNumber{}, err
	}

	townCode, ok := info.TownCode()
	if !ok {
		err := &easymap.SessionError{Message: "door info has no towncode"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing town code")
		return LandNumber{}, err
	}

	result := LandNumber{Code: townCode}
	name, ok := towns.Code2Name(townCode)
	if ok {
		result.Name = &name
	} else {
		slog.WarnContext(
			ctx, "town code missing from registry snapshot",
			"city_code", cityCode,
			"town_code", townCode,
		)
	}

	span.SetAttributes(attribute.String("landnumber.code", townCode))
	return result, nil
}
