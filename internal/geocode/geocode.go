// Package geocode turns event addresses into map points, consulting a
// location cache before asking an upstream geocoder.
package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/geo-events/internal/metrics"
)

// MissingAddress is the placeholder event listings use when a venue has no address.
const MissingAddress = "Brak adresu"

// Geocoder resolves an address. ok is false when the address is unknown.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (pt orb.Point, ok bool, err error)
}

// Cached answers from Cache and falls back to Upstream, saving what it finds.
// Concurrent lookups of one address share a single upstream call.
type Cached struct {
	Upstream Geocoder
	Cache    Cache
	Logger   *slog.Logger

	group singleflight.Group
}

// NewCached creates a cache-first geocoder.
func NewCached(upstream Geocoder, cache Cache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{Upstream: upstream, Cache: cache, Logger: logger}
}

type result struct {
	pt orb.Point
	ok bool
}

// Geocode returns the cached point for address or resolves and caches it.
// Blank addresses and the listing placeholder are never looked up.
func (c *Cached) Geocode(ctx context.Context, address string) (orb.Point, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" || address == MissingAddress {
		return orb.Point{}, false, nil
	}

	pt, ok, err := c.Cache.Get(ctx, address)
	if err != nil {
		c.Logger.Warn("read location cache", "address", address, "err", err)
	} else if ok {
		metrics.ObserveGeocode(metrics.GeocodeHit)
		return pt, true, nil
	}

	v, err, _ := c.group.Do(address, func() (any, error) {
		pt, ok, err := c.Upstream.Geocode(ctx, address)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := c.Cache.Save(ctx, address, pt); err != nil {
				c.Logger.Warn("save location", "address", address, "err", err)
			}
		}
		return result{pt: pt, ok: ok}, nil
	})
	if err != nil {
		metrics.ObserveGeocode(metrics.GeocodeError)
		return orb.Point{}, false, err
	}

	r := v.(result)
	if !r.ok {
		metrics.ObserveGeocode(metrics.GeocodeNotFound)
		return orb.Point{}, false, nil
	}
	metrics.ObserveGeocode(metrics.GeocodeResolved)
	c.Logger.Debug("geocoded", "address", address, "lat", r.pt.Lat(), "lon", r.pt.Lon())
	return r.pt, true, nil
}
