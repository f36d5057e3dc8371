package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ipdr-dashboard/internal/geoip"
	"ipdr-dashboard/internal/ingest"
)

type countingGeo struct{ calls map[string]int }

func (g *countingGeo) Lookup(ctx context.Context, ip string) (geoip.GeoInfo, error) {
	g.calls[ip]++
	if ip == "198.51.100.7" {
		return geoip.GeoInfo{}, errors.New("connection refused")
	}
	lat, lon := 48.85, 2.35
	return geoip.GeoInfo{Country: "FR", State: "IDF", City: "Paris", Latitude: &lat, Longitude: &lon}, nil
}

type countingNames struct{ calls map[string]int }

func (n *countingNames) Lookup(ctx context.Context, addr string) (string, error) {
	n.calls[addr]++
	if addr == "8.8.8.8" {
		return "dns.google", nil
	}
	return "", errors.New("no PTR record")
}

func newPipeline() (*Pipeline, *countingGeo, *countingNames) {
	g := &countingGeo{calls: map[string]int{}}
	n := &countingNames{calls: map[string]int{}}
	return New(g, n, nil, nil), g, n
}

var header = []string{"source_ip", "destination_ip", "session_start_time", "session_end_time", "bytes_transferred"}

func TestProcess_EndToEndExample(t *testing.T) {
	p, geo, _ := newPipeline()
	table := ingest.NewTable(header, [][]string{
		{"10.0.0.5", "8.8.8.8", "2024-01-01T10:00:00", "2024-01-01T10:05:00", "2097152"},
	})

	res, err := p.Process(context.Background(), table, ingest.ColumnMapping{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Logs) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Logs))
	}
	row := res.Logs[0]
	if row.UserNumber != "user1" {
		t.Errorf("expected user1, got %q", row.UserNumber)
	}
	if row.Country != geoip.LocalNetwork || row.State != geoip.NotApplicable || row.City != geoip.NotApplicable {
		t.Errorf("expected local network placeholder, got %q/%q/%q", row.Country, row.State, row.City)
	}
	if row.Latitude != nil || row.Longitude != nil {
		t.Error("expected nil coordinates for local address")
	}
	if row.TotalDurationSeconds == nil || *row.TotalDurationSeconds != 300 {
		t.Errorf("expected 300s duration, got %v", row.TotalDurationSeconds)
	}
	if row.DataUsageMB == nil || *row.DataUsageMB != 2.0 {
		t.Errorf("expected 2.0 MB, got %v", row.DataUsageMB)
	}
	if row.DestinationDomain == nil || *row.DestinationDomain != "dns.google" {
		t.Errorf("expected dns.google, got %v", row.DestinationDomain)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if row.SessionStartTime == nil || !row.SessionStartTime.Equal(want) {
		t.Errorf("expected start %v, got %v", want, row.SessionStartTime)
	}
	if len(geo.calls) != 0 {
		t.Errorf("expected no geolocation calls, got %v", geo.calls)
	}
}

func TestProcess_MissingColumnsStopsBeforeLookups(t *testing.T) {
	p, geo, names := newPipeline()
	table := ingest.NewTable([]string{"source_ip", "destination_ip"}, [][]string{{"8.8.4.4", "8.8.8.8"}})

	_, err := p.Process(context.Background(), table, ingest.ColumnMapping{})
	var missing *ingest.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if len(missing.Columns) != 3 {
		t.Fatalf("expected 3 missing columns, got %v", missing.Columns)
	}
	if len(geo.calls) != 0 || len(names.calls) != 0 {
		t.Fatal("no lookups should happen on a failed validation")
	}
}

func TestProcess_BroadcastJoinAndMemoization(t *testing.T) {
	p, geo, names := newPipeline()
	table := ingest.NewTable(header, [][]string{
		{"8.8.4.4", "8.8.8.8", "2024-01-01 10:00:00", "2024-01-01 10:00:30", "1024"},
		{"198.51.100.7", "203.0.113.5", "2024-01-01 11:00:00", "2024-01-01 11:00:10", "2048"},
		{"8.8.4.4", "8.8.8.8", "2024-01-01 12:00:00", "2024-01-01 12:01:00", "4096"},
		{"8.8.4.4", "", "2024-01-01 13:00:00", "2024-01-01 13:00:05", "0"},
	})

	res, err := p.Process(context.Background(), table, ingest.ColumnMapping{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo.calls["8.8.4.4"] != 1 || geo.calls["198.51.100.7"] != 1 {
		t.Fatalf("expected one geolocation call per address, got %v", geo.calls)
	}
	if names.calls["8.8.8.8"] != 1 || names.calls["203.0.113.5"] != 1 || len(names.calls) != 2 {
		t.Fatalf("expected one name call per non-empty address, got %v", names.calls)
	}
	if res.Users != 2 {
		t.Fatalf("expected 2 users, got %d", res.Users)
	}

	logs := res.Logs
	if logs[0].UserNumber != "user1" || logs[2].UserNumber != "user1" || logs[3].UserNumber != "user1" {
		t.Error("identical source addresses must share a user number")
	}
	if logs[1].UserNumber != "user2" {
		t.Errorf("expected user2, got %q", logs[1].UserNumber)
	}
	if logs[0].City != "Paris" || logs[2].City != "Paris" {
		t.Error("geolocation must be joined onto every row of the address")
	}
	if logs[1].Country != geoip.ErrorValue {
		t.Errorf("expected error sentinel, got %q", logs[1].Country)
	}
	if logs[1].DestinationDomain == nil || *logs[1].DestinationDomain != "Unknown Domain" {
		t.Errorf("expected Unknown Domain, got %v", logs[1].DestinationDomain)
	}
	if logs[3].DestinationDomain != nil {
		t.Error("empty destination must leave the domain NULL")
	}
	if res.Stats.GeoCalls != 2 || res.Stats.GeoFailures != 1 || res.Stats.NameCalls != 2 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
}

func TestProcess_CustomMappingAndExtraColumns(t *testing.T) {
	p, _, _ := newPipeline()
	table := ingest.NewTable(
		[]string{"a_party", "b_party", "begin", "finish", "octets", "imsi"},
		[][]string{{"10.1.1.1", "", "2024-02-01 08:00:00", "2024-02-01 07:59:00", "abc", "4040"}},
	)
	mapping := ingest.ColumnMapping{SourceIP: "a_party", DestinationIP: "b_party", StartTime: "begin", EndTime: "finish", Bytes: "octets"}

	res, err := p.Process(context.Background(), table, mapping)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := res.Logs[0]
	if row.SourceIP != "10.1.1.1" {
		t.Errorf("expected source ip to be projected, got %q", row.SourceIP)
	}
	if row.TotalDurationSeconds == nil || *row.TotalDurationSeconds != -60 {
		t.Errorf("expected -60s duration, got %v", row.TotalDurationSeconds)
	}
	if row.DataUsageMB != nil {
		t.Errorf("expected NULL volume for non-numeric bytes, got %v", *row.DataUsageMB)
	}
}

func TestProcess_ContextCancelled(t *testing.T) {
	p, _, _ := newPipeline()
	table := ingest.NewTable(header, [][]string{{"8.8.4.4", "8.8.8.8", "", "", ""}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Process(ctx, table, ingest.ColumnMapping{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-05T14:30:00", "2024-03-05 14:30:00", "2024-03-05T14:30:00Z", "2024-03-05T16:30:00+02:00"} {
		got := ParseTimestamp(s)
		if got == nil || !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", s, got, want)
		}
	}
	for _, s := range []string{"", "  ", "not a date"} {
		if got := ParseTimestamp(s); got != nil {
			t.Errorf("ParseTimestamp(%q) = %v, want nil", s, got)
		}
	}
}

func TestSessionDuration_MissingSide(t *testing.T) {
	now := time.Now()
	if SessionDuration(nil, &now) != nil || SessionDuration(&now, nil) != nil {
		t.Fatal("expected nil when a timestamp is missing")
	}
}

func TestBytesToMB(t *testing.T) {
	cases := map[string]float64{"1048576": 1, "524288": 0.5, " 3145728 ": 3, "0": 0, "1.5e6": 1.5e6 / 1048576}
	for in, want := range cases {
		got := BytesToMB(in)
		if got == nil || math.Abs(*got-want) > 1e-12 {
			t.Errorf("BytesToMB(%q) = %v, want %v", in, got, want)
		}
	}
	for _, in := range []string{"", "n/a", "NaN", "Inf"} {
		if got := BytesToMB(in); got != nil {
			t.Errorf("BytesToMB(%q) = %v, want nil", in, *got)
		}
	}
}
