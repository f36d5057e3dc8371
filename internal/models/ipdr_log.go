package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRecord is returned when a record does not satisfy the ipdr_logs contract.
var ErrInvalidRecord = errors.New("invalid ipdr record")

// IPDRLog is one enriched session as stored in the ipdr_logs table.
// Pointer fields are NULL when the value could not be derived.
type IPDRLog struct {
	UserNumber           string     `db:"user_number" json:"user_number"`
	SourceIP             string     `db:"source_ip" json:"source_ip"`
	Country              string     `db:"country" json:"country"`
	State                string     `db:"state" json:"state"`
	City                 string     `db:"city" json:"city"`
	Latitude             *float64   `db:"latitude" json:"latitude"`
	Longitude            *float64   `db:"longitude" json:"longitude"`
	DestinationIP        string     `db:"destination_ip" json:"destination_ip"`
	DestinationDomain    *string    `db:"destination_domain" json:"destination_domain"`
	SessionStartTime     *time.Time `db:"session_start_time" json:"session_start_time"`
	TotalDurationSeconds *float64   `db:"total_duration_seconds" json:"total_duration_seconds"`
	DataUsageMB          *float64   `db:"data_usage_mb" json:"data_usage_mb"`
}

// IPDRLogColumns is the persisted column set, in table order.
var IPDRLogColumns = []string{
	"user_number", "source_ip", "country", "state", "city", "latitude", "longitude",
	"destination_ip", "destination_domain", "session_start_time",
	"total_duration_seconds", "data_usage_mb",
}

// Validate checks the record against the table contract.
func (l *IPDRLog) Validate() error {
	if l.UserNumber == "" {
		return fmt.Errorf("%w: user_number is empty", ErrInvalidRecord)
	}
	for name, v := range map[string]*float64{
		"latitude":               l.Latitude,
		"longitude":              l.Longitude,
		"total_duration_seconds": l.TotalDurationSeconds,
		"data_usage_mb":          l.DataUsageMB,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidRecord, name)
		}
	}
	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90) {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidRecord, *l.Latitude)
	}
	if l.Longitude != nil && (*l.Longitude < -180 || *l.Longitude > 180) {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidRecord, *l.Longitude)
	}
	return nil
}
