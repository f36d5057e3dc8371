package report

import (
	"sort"

	"ipdr-dashboard/internal/models"
)

// TopN is the length of every domain ranking.
const TopN = 10

// DomainValue is one entry of a domain ranking.
type DomainValue struct {
	Domain string  `json:"domain"`
	Value  float64 `json:"value"`
}

// MapPoint is a geolocated source address.
type MapPoint struct {
	SourceIP  string  `json:"source_ip"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Sessions  int     `json:"sessions"`
}

// Report summarizes a set of sessions for the dashboard.
type Report struct {
	TotalSessions       int           `json:"total_sessions"`
	UniqueUsers         int           `json:"unique_users"`
	TotalDurationHours  float64       `json:"total_duration_hours"`
	TopDomainsByVisits  []DomainValue `json:"top_domains_by_visits"`
	TopDomainsByDataMB  []DomainValue `json:"top_domains_by_data_mb"`
	TopDomainsByMinutes []DomainValue `json:"top_domains_by_minutes"`
	MapPoints           []MapPoint    `json:"map_points"`
}

// Build aggregates rows. NULL durations and volumes count as zero in sums;
// rows without a destination domain are left out of the rankings.
func Build(rows []models.IPDRLog) Report {
	r := Report{TotalSessions: len(rows)}

	users := make(map[string]struct{})
	visits := newRanking()
	dataMB := newRanking()
	minutes := newRanking()
	points := make(map[string]int)

	for i := range rows {
		row := &rows[i]
		users[row.UserNumber] = struct{}{}

		var seconds, mb float64
		if row.TotalDurationSeconds != nil {
			seconds = *row.TotalDurationSeconds
		}
		if row.DataUsageMB != nil {
			mb = *row.DataUsageMB
		}
		r.TotalDurationHours += seconds / 3600

		if row.DestinationDomain != nil {
			d := *row.DestinationDomain
			visits.add(d, 1)
			dataMB.add(d, mb)
			minutes.add(d, seconds/60)
		}

		if row.Latitude == nil || row.Longitude == nil {
			continue
		}
		if idx, ok := points[row.SourceIP]; ok {
			r.MapPoints[idx].Sessions++
			continue
		}
		points[row.SourceIP] = len(r.MapPoints)
		r.MapPoints = append(r.MapPoints, MapPoint{
			SourceIP:  row.SourceIP,
			City:      row.City,
			Country:   row.Country,
			Latitude:  *row.Latitude,
			Longitude: *row.Longitude,
			Sessions:  1,
		})
	}

	r.UniqueUsers = len(users)
	r.TopDomainsByVisits = visits.top(TopN)
	r.TopDomainsByDataMB = dataMB.top(TopN)
	r.TopDomainsByMinutes = minutes.top(TopN)
	if r.MapPoints == nil {
		r.MapPoints = []MapPoint{}
	}
	return r
}

// ranking sums values per domain and remembers first-seen order for ties.
type ranking struct {
	index   map[string]int
	entries []DomainValue
}

func newRanking() *ranking {
	return &ranking{index: make(map[string]int)}
}

func (k *ranking) add(domain string, v float64) {
	i, ok := k.index[domain]
	if !ok {
		i = len(k.entries)
		k.index[domain] = i
		k.entries = append(k.entries, DomainValue{Domain: domain})
	}
	k.entries[i].Value += v
}

func (k *ranking) top(n int) []DomainValue {
	out := make([]DomainValue, len(k.entries))
	copy(out, k.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
