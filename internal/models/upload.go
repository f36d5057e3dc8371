package models

import "time"

// Upload records one processed and persisted file.
type Upload struct {
	ID         string    `db:"id" json:"id"`
	FileName   string    `db:"file_name" json:"file_name"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	RowCount   int       `db:"row_count" json:"row_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
