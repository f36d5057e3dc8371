package enrichment

import (
	"context"

	"go.uber.org/zap"

	"ipdr-dashboard/internal/geoip"
	"ipdr-dashboard/internal/metrics"
	"ipdr-dashboard/internal/rdns"
)

// GeoLookup resolves an address to its geolocation.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (geoip.GeoInfo, error)
}

// NameLookup resolves an address to a host name.
type NameLookup interface {
	Lookup(ctx context.Context, addr string) (string, error)
}

// Stats counts external calls and cache hits of one run.
type Stats struct {
	GeoCalls      int `json:"geo_calls"`
	GeoCacheHits  int `json:"geo_cache_hits"`
	GeoLocal      int `json:"geo_local"`
	GeoFailures   int `json:"geo_failures"`
	NameCalls     int `json:"name_calls"`
	NameCacheHits int `json:"name_cache_hits"`
	NameFailures  int `json:"name_failures"`
}

// Resolver enriches addresses for a single processing run. Results are
// memoized by address so each distinct address costs at most one external
// call. A Resolver must not be shared between runs.
type Resolver struct {
	geo     GeoLookup
	names   NameLookup
	logger  *zap.Logger
	metrics *metrics.Metrics

	geoCache  map[string]geoip.GeoInfo
	nameCache map[string]string
	stats     Stats
}

// NewResolver creates a Resolver with empty caches.
func NewResolver(geo GeoLookup, names NameLookup, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		geo:       geo,
		names:     names,
		logger:    logger,
		metrics:   m,
		geoCache:  make(map[string]geoip.GeoInfo),
		nameCache: make(map[string]string),
	}
}

// Geo returns the geolocation of ip. Local addresses get the local network
// placeholder without a call; failures get the error placeholder.
func (r *Resolver) Geo(ctx context.Context, ip string) geoip.GeoInfo {
	if info, ok := r.geoCache[ip]; ok {
		r.stats.GeoCacheHits++
		r.metrics.Lookup(metrics.KindGeo, metrics.ResultCached)
		return info
	}

	var info geoip.GeoInfo
	if geoip.IsLocal(ip) {
		info = geoip.LocalInfo()
		r.stats.GeoLocal++
		r.metrics.Lookup(metrics.KindGeo, metrics.ResultLocal)
	} else {
		r.stats.GeoCalls++
		r.metrics.Lookup(metrics.KindGeo, metrics.ResultCall)
		var err error
		info, err = r.geo.Lookup(ctx, ip)
		if err != nil {
			r.logger.Warn("Geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
			r.stats.GeoFailures++
			r.metrics.Lookup(metrics.KindGeo, metrics.ResultFailure)
			info = geoip.ErrorInfo()
		}
	}

	r.geoCache[ip] = info
	return info
}

// Name returns the reverse name of addr, or rdns.UnknownDomain on failure.
func (r *Resolver) Name(ctx context.Context, addr string) string {
	if name, ok := r.nameCache[addr]; ok {
		r.stats.NameCacheHits++
		r.metrics.Lookup(metrics.KindName, metrics.ResultCached)
		return name
	}

	r.stats.NameCalls++
	r.metrics.Lookup(metrics.KindName, metrics.ResultCall)
	name, err := r.names.Lookup(ctx, addr)
	if err != nil {
		r.logger.Debug("Reverse lookup failed", zap.String("ip", addr), zap.Error(err))
		r.stats.NameFailures++
		r.metrics.Lookup(metrics.KindName, metrics.ResultFailure)
		name = rdns.UnknownDomain
	}

	r.nameCache[addr] = name
	return name
}

// Stats returns the counters accumulated so far.
func (r *Resolver) Stats() Stats {
	return r.stats
}
