package domain

import "time"

// BatchStatus enumerates the lifecycle states of an import batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchPartial    BatchStatus = "partial"
	BatchFailed     BatchStatus = "failed"
)

// IsTerminal returns true if the batch can no longer change.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchPartial || s == BatchFailed
}

// Row error codes. Each rejected row carries exactly one.
const (
	CodeMissingField           = "missing_field"
	CodeInvalidIdentifier      = "invalid_identifier"
	CodeInvalidNumber          = "invalid_number"
	CodeNegativeValue          = "negative_value"
	CodeInvalidPlatform        = "invalid_platform"
	CodeInvalidLocale          = "invalid_locale"
	CodeInvalidDate            = "invalid_date"
	CodeInvalidDateRange       = "invalid_date_range"
	CodeAngleNotFound          = "angle_not_found"
	CodeCrossCampaignReference = "cross_campaign_reference"
	CodeMalformedCSV           = "malformed_csv"
	CodeMissingColumn          = "missing_column"
	CodeStorageError           = "storage_error"
)

// RowError describes why one CSV row was rejected. Row is the spreadsheet
// line number, so the first data row under the header is row 2.
type RowError struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RowError) Error() string { return e.Message }

// ImportBatch is the ledger record for one CSV upload.
type ImportBatch struct {
	ID            string      `json:"id" db:"id"`
	CampaignID    string      `json:"campaign_id" db:"campaign_id"`
	Filename      string      `json:"filename" db:"filename"`
	RowsTotal     int         `json:"rows_total" db:"rows_total"`
	RowsProcessed int         `json:"rows_processed" db:"rows_processed"`
	RowsFailed    int         `json:"rows_failed" db:"rows_failed"`
	Errors        []RowError  `json:"errors" db:"errors"`
	Status        BatchStatus `json:"status" db:"status"`
	ArchiveKey    string      `json:"archive_key,omitempty" db:"archive_key"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	CompletedAt   *time.Time  `json:"completed_at" db:"completed_at"`
}

// BatchOutcome is the final state written to a batch when ingestion ends.
type BatchOutcome struct {
	Status        BatchStatus
	RowsTotal     int
	RowsProcessed int
	RowsFailed    int
	Errors        []RowError
	ArchiveKey    string
	CompletedAt   time.Time
}
