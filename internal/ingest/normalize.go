package ingest

import (
	"fmt"
	"strings"
)

// Default column names of an IPDR export.
const (
	DefaultSourceIPColumn      = "source_ip"
	DefaultDestinationIPColumn = "destination_ip"
	DefaultStartTimeColumn     = "session_start_time"
	DefaultEndTimeColumn       = "session_end_time"
	DefaultBytesColumn         = "bytes_transferred"
)

// ColumnMapping names the five required input columns.
type ColumnMapping struct {
	SourceIP      string `json:"source_ip_col" form:"source_ip_col"`
	DestinationIP string `json:"destination_ip_col" form:"destination_ip_col"`
	StartTime     string `json:"start_time_col" form:"start_time_col"`
	EndTime       string `json:"end_time_col" form:"end_time_col"`
	Bytes         string `json:"bytes_col" form:"bytes_col"`
}

// DefaultMapping returns the mapping used when the caller names nothing.
func DefaultMapping() ColumnMapping {
	return ColumnMapping{
		SourceIP:      DefaultSourceIPColumn,
		DestinationIP: DefaultDestinationIPColumn,
		StartTime:     DefaultStartTimeColumn,
		EndTime:       DefaultEndTimeColumn,
		Bytes:         DefaultBytesColumn,
	}
}

// WithDefaults fills blank names from DefaultMapping.
func (m ColumnMapping) WithDefaults() ColumnMapping {
	d := DefaultMapping()
	pick := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return fallback
	}
	return ColumnMapping{
		SourceIP:      pick(m.SourceIP, d.SourceIP),
		DestinationIP: pick(m.DestinationIP, d.DestinationIP),
		StartTime:     pick(m.StartTime, d.StartTime),
		EndTime:       pick(m.EndTime, d.EndTime),
		Bytes:         pick(m.Bytes, d.Bytes),
	}
}

// Required lists the mapped column names in a fixed order.
func (m ColumnMapping) Required() []string {
	return []string{m.SourceIP, m.DestinationIP, m.StartTime, m.EndTime, m.Bytes}
}

// MissingColumnsError names every required column absent from the header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("the following columns are missing: %s", strings.Join(e.Columns, ", "))
}

// Validate checks that every mapped column exists in t.
func Validate(t *Table, m ColumnMapping) error {
	var missing []string
	for _, col := range m.Required() {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// AssignUserNumbers maps each distinct address to user1, user2, ... in
// first-seen order. The ids are only stable within one batch.
func AssignUserNumbers(addrs []string) (map[string]string, []string) {
	ids := make(map[string]string)
	var order []string
	for _, a := range addrs {
		if _, seen := ids[a]; seen {
			continue
		}
		order = append(order, a)
		ids[a] = fmt.Sprintf("user%d", len(order))
	}
	return ids, order
}
