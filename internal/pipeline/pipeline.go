package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ipdr-dashboard/internal/enrichment"
	"ipdr-dashboard/internal/geoip"
	"ipdr-dashboard/internal/ingest"
	"ipdr-dashboard/internal/metrics"
	"ipdr-dashboard/internal/models"
)

// Result is the output of one processing run.
type Result struct {
	Logs  []models.IPDRLog `json:"-"`
	Users int              `json:"users"`
	Stats enrichment.Stats `json:"stats"`
}

// Pipeline turns an uploaded table into records ready for the ipdr_logs table.
type Pipeline struct {
	geo     enrichment.GeoLookup
	names   enrichment.NameLookup
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(geo enrichment.GeoLookup, names enrichment.NameLookup, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{geo: geo, names: names, logger: logger, metrics: m}
}

// Process validates the table against mapping, enriches every distinct
// address once and derives the persisted records. A table missing any
// mapped column fails with *ingest.MissingColumnsError before any lookup.
func (p *Pipeline) Process(ctx context.Context, t *ingest.Table, mapping ingest.ColumnMapping) (*Result, error) {
	mapping = mapping.WithDefaults()
	if err := ingest.Validate(t, mapping); err != nil {
		return nil, err
	}

	sources := t.Column(mapping.SourceIP)
	destinations := t.Column(mapping.DestinationIP)
	starts := t.Column(mapping.StartTime)
	ends := t.Column(mapping.EndTime)
	volumes := t.Column(mapping.Bytes)

	p.logger.Info("Step 1/6: Assigning user numbers", zap.Int("rows", t.Len()))
	userIDs, uniqueSources := ingest.AssignUserNumbers(sources)

	resolver := enrichment.NewResolver(p.geo, p.names, p.logger, p.metrics)

	p.logger.Info("Step 2/6: Enriching source IPs with geolocation data", zap.Int("addresses", len(uniqueSources)))
	geoByIP := make(map[string]geoip.GeoInfo, len(uniqueSources))
	for _, ip := range uniqueSources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("enrichment aborted: %w", err)
		}
		geoByIP[ip] = resolver.Geo(ctx, ip)
	}

	uniqueDestinations := distinctNonEmpty(destinations)
	p.logger.Info("Step 3/6: Looking up destination domains", zap.Int("addresses", len(uniqueDestinations)))
	nameByIP := make(map[string]string, len(uniqueDestinations))
	for _, ip := range uniqueDestinations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("enrichment aborted: %w", err)
		}
		nameByIP[ip] = resolver.Name(ctx, ip)
	}

	logs := make([]models.IPDRLog, t.Len())
	for i := range logs {
		geo := geoByIP[sources[i]]
		logs[i] = models.IPDRLog{
			UserNumber:    userIDs[sources[i]],
			SourceIP:      sources[i],
			Country:       geo.Country,
			State:         geo.State,
			City:          geo.City,
			Latitude:      geo.Latitude,
			Longitude:     geo.Longitude,
			DestinationIP: destinations[i],
		}
		if name, ok := nameByIP[destinations[i]]; ok {
			logs[i].DestinationDomain = &name
		}
	}

	p.logger.Info("Step 4/6: Calculating session durations")
	for i := range logs {
		start := ParseTimestamp(starts[i])
		logs[i].SessionStartTime = start
		logs[i].TotalDurationSeconds = SessionDuration(start, ParseTimestamp(ends[i]))
	}

	p.logger.Info("Step 5/6: Converting data usage from bytes to megabytes")
	for i := range logs {
		logs[i].DataUsageMB = BytesToMB(volumes[i])
	}

	p.logger.Info("Step 6/6: Finalizing records", zap.Int("rows", len(logs)))
	return &Result{Logs: logs, Users: len(uniqueSources), Stats: resolver.Stats()}, nil
}

func distinctNonEmpty(values []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
