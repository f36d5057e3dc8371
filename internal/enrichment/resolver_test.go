package enrichment

import (
	"context"
	"errors"
	"testing"

	"ipdr-dashboard/internal/geoip"
	"ipdr-dashboard/internal/rdns"
)

type fakeGeo struct {
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeGeo) Lookup(ctx context.Context, ip string) (geoip.GeoInfo, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[ip]++
	if f.fail[ip] {
		return geoip.GeoInfo{}, errors.New("timeout")
	}
	lat, lon := 1.5, 2.5
	return geoip.GeoInfo{Country: "US", State: "CA", City: "LA", Latitude: &lat, Longitude: &lon}, nil
}

type fakeNames struct {
	calls map[string]int
	names map[string]string
}

func (f *fakeNames) Lookup(ctx context.Context, addr string) (string, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[addr]++
	if n, ok := f.names[addr]; ok {
		return n, nil
	}
	return "", errors.New("no such host")
}

func TestGeo_LocalNeverCalls(t *testing.T) {
	geo := &fakeGeo{}
	r := NewResolver(geo, &fakeNames{}, nil, nil)

	for _, ip := range []string{"10.0.0.5", "192.168.0.1", "172.16.3.3", ""} {
		info := r.Geo(context.Background(), ip)
		if info != geoip.LocalInfo() {
			t.Fatalf("expected local placeholder for %q, got %+v", ip, info)
		}
	}
	if len(geo.calls) != 0 {
		t.Fatalf("expected no external calls, got %v", geo.calls)
	}
}

func TestGeo_MemoizesAddress(t *testing.T) {
	geo := &fakeGeo{}
	r := NewResolver(geo, &fakeNames{}, nil, nil)

	first := r.Geo(context.Background(), "8.8.8.8")
	second := r.Geo(context.Background(), "8.8.8.8")
	if geo.calls["8.8.8.8"] != 1 {
		t.Fatalf("expected one call, got %d", geo.calls["8.8.8.8"])
	}
	if first.Country != second.Country || *first.Latitude != *second.Latitude {
		t.Fatal("cached result differs")
	}
	if s := r.Stats(); s.GeoCalls != 1 || s.GeoCacheHits != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestGeo_FailureYieldsSentinelAndContinues(t *testing.T) {
	geo := &fakeGeo{fail: map[string]bool{"1.2.3.4": true}}
	r := NewResolver(geo, &fakeNames{}, nil, nil)

	bad := r.Geo(context.Background(), "1.2.3.4")
	if bad.Country != geoip.ErrorValue || bad.State != geoip.ErrorValue || bad.City != geoip.ErrorValue {
		t.Fatalf("expected error placeholder, got %+v", bad)
	}
	if bad.Latitude != nil || bad.Longitude != nil {
		t.Fatal("expected nil coordinates on failure")
	}
	good := r.Geo(context.Background(), "8.8.8.8")
	if good.Country != "US" {
		t.Fatalf("expected lookup after failure to succeed, got %+v", good)
	}
	r.Geo(context.Background(), "1.2.3.4")
	if geo.calls["1.2.3.4"] != 1 {
		t.Fatal("failed address should be memoized too")
	}
}

func TestName_UnknownDomainAndCache(t *testing.T) {
	names := &fakeNames{names: map[string]string{"8.8.8.8": "dns.google"}}
	r := NewResolver(&fakeGeo{}, names, nil, nil)

	if got := r.Name(context.Background(), "8.8.8.8"); got != "dns.google" {
		t.Fatalf("expected dns.google, got %q", got)
	}
	if got := r.Name(context.Background(), "203.0.113.1"); got != rdns.UnknownDomain {
		t.Fatalf("expected %q, got %q", rdns.UnknownDomain, got)
	}
	r.Name(context.Background(), "203.0.113.1")
	r.Name(context.Background(), "8.8.8.8")
	if names.calls["8.8.8.8"] != 1 || names.calls["203.0.113.1"] != 1 {
		t.Fatalf("expected one call per address, got %v", names.calls)
	}
	s := r.Stats()
	if s.NameCalls != 2 || s.NameCacheHits != 2 || s.NameFailures != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
