package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"ipdr-dashboard/internal/models"
)

// WriteCSV writes rows with a header of the ipdr_logs columns. NULL values
// are written as empty cells.
func WriteCSV(w io.Writer, rows []models.IPDRLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.IPDRLogColumns); err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		record := []string{
			r.UserNumber,
			r.SourceIP,
			r.Country,
			r.State,
			r.City,
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			r.DestinationIP,
			formatString(r.DestinationDomain),
			formatTime(r.SessionStartTime),
			formatFloat(r.TotalDurationSeconds),
			formatFloat(r.DataUsageMB),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format("2006-01-02 15:04:05")
}
