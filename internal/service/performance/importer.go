package performance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/copyloop/internal/domain"
	"github.com/ignite/copyloop/internal/pkg/logger"
)

// ImportInput is one uploaded CSV file.
type ImportInput struct {
	CampaignID string
	Filename   string
	Body       io.Reader
}

// ImportResult summarizes a finished import. It is returned for every
// import, including fully failed ones.
type ImportResult struct {
	BatchID       string             `json:"batch_id"`
	Status        domain.BatchStatus `json:"status"`
	RowsTotal     int                `json:"rows_total"`
	RowsProcessed int                `json:"rows_processed"`
	RowsFailed    int                `json:"rows_failed"`
	Errors        []domain.RowError  `json:"errors"`
}

// Import streams a CSV of performance metrics into the campaign. Row level
// problems are collected on the batch and never abort the scan. A file that
// cannot be parsed as CSV fails the batch and persists nothing.
//
// The returned error is non-nil only for infrastructure failures; the batch
// is still closed as failed when that happens after it was opened.
func (s *Service) Import(ctx context.Context, in ImportInput) (*ImportResult, error) {
	if in.Body == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	campaign, err := s.campaigns.GetCampaign(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}

	batch, err := s.ledger.Open(ctx, campaign.ID, in.Filename)
	if err != nil {
		return nil, err
	}
	// An opened batch must reach a terminal state even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	out, ingestErr := s.ingest(ctx, batch, in.Body)
	if ingestErr != nil {
		out = domain.BatchOutcome{
			Status:    domain.BatchFailed,
			RowsTotal: out.RowsTotal,
			Errors: []domain.RowError{{
				Code:    domain.CodeStorageError,
				Message: "import aborted before rows were saved",
			}},
		}
		out.RowsFailed = out.RowsTotal
	} else {
		out.ArchiveKey = s.archive(ctx, batch, in.Body)
	}

	if err := s.ledger.Close(ctx, batch, out); err != nil {
		return nil, fmt.Errorf("close batch %s: %w", batch.ID, err)
	}
	s.recorder.ImportFinished(out.Status, out.RowsProcessed, out.RowsFailed)

	logger.Info("import finished",
		"batch_id", batch.ID,
		"campaign_id", batch.CampaignID,
		"status", out.Status,
		"rows_total", out.RowsTotal,
		"rows_processed", out.RowsProcessed,
		"rows_failed", out.RowsFailed,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	if ingestErr != nil {
		return nil, fmt.Errorf("import batch %s: %w", batch.ID, ingestErr)
	}

	return &ImportResult{
		BatchID:       batch.ID,
		Status:        batch.Status,
		RowsTotal:     batch.RowsTotal,
		RowsProcessed: batch.RowsProcessed,
		RowsFailed:    batch.RowsFailed,
		Errors:        batch.Errors,
	}, nil
}

// Template returns the CSV header expected by Import.
func Template() string {
	return strings.Join(Columns, ",") + "\n"
}

// pendingRow is a scanned record waiting for its chunk to be resolved.
type pendingRow struct {
	line      int
	candidate RowCandidate
	err       *domain.RowError
}

// ingestion carries the per-import state across chunks. owners memoises
// angle lookups; an empty string marks an angle that does not exist.
type ingestion struct {
	batchID    string
	campaignID string
	writer     RowWriter
	owners     map[string]string
	chunk      []pendingRow

	total    int
	accepted int
	errs     []domain.RowError
}

// ingest scans the whole body. Errors returned are infrastructure failures;
// CSV problems are reported through the outcome.
func (s *Service) ingest(ctx context.Context, batch *domain.ImportBatch, body io.Reader) (domain.BatchOutcome, error) {
	reader := csv.NewReader(stripBOM(body))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return domain.BatchOutcome{Status: domain.BatchCompleted}, nil
	}
	if err != nil {
		return malformed(0, 1, err), nil
	}
	columns := indexHeader(header)
	for _, col := range RequiredColumns {
		if _, ok := columns[col]; !ok {
			return domain.BatchOutcome{
				Status: domain.BatchFailed,
				Errors: []domain.RowError{{
					Row:     1,
					Code:    domain.CodeMissingColumn,
					Message: fmt.Sprintf("header is missing required column %s", col),
				}},
			}, nil
		}
	}

	writer, err := s.rows.BeginRows(ctx, batch.ID)
	if err != nil {
		return domain.BatchOutcome{}, fmt.Errorf("begin rows: %w", err)
	}
	ing := &ingestion{
		batchID:    batch.ID,
		campaignID: batch.CampaignID,
		writer:     writer,
		owners:     make(map[string]string),
		chunk:      make([]pendingRow, 0, s.chunkSize),
		errs:       []domain.RowError{},
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = writer.Rollback()
			line := ing.total + 2
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return malformed(ing.total, line, err), nil
		}

		ing.total++
		fields := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(record) {
				fields[name] = record[idx]
			}
		}
		candidate, rerr := ValidateRow(fields)
		ing.chunk = append(ing.chunk, pendingRow{line: ing.total + 1, candidate: candidate, err: rerr})

		if len(ing.chunk) >= s.chunkSize {
			if err := ing.flush(ctx); err != nil {
				_ = writer.Rollback()
				return domain.BatchOutcome{RowsTotal: ing.total}, err
			}
		}
	}
	if err := ing.flush(ctx); err != nil {
		_ = writer.Rollback()
		return domain.BatchOutcome{RowsTotal: ing.total}, err
	}
	if err := writer.Commit(); err != nil {
		return domain.BatchOutcome{RowsTotal: ing.total}, fmt.Errorf("commit rows: %w", err)
	}

	failed := len(ing.errs)
	return domain.BatchOutcome{
		Status:        ResolveStatus(ing.total, ing.accepted, failed),
		RowsTotal:     ing.total,
		RowsProcessed: ing.accepted,
		RowsFailed:    failed,
		Errors:        ing.errs,
	}, nil
}

// flush resolves the angles referenced by the current chunk in one lookup,
// records errors in input order, and writes the accepted rows.
func (ing *ingestion) flush(ctx context.Context) error {
	if len(ing.chunk) == 0 {
		return nil
	}

	var unseen []string
	for _, p := range ing.chunk {
		if p.err != nil {
			continue
		}
		if _, ok := ing.owners[p.candidate.AngleID]; !ok {
			ing.owners[p.candidate.AngleID] = ""
			unseen = append(unseen, p.candidate.AngleID)
		}
	}
	if len(unseen) > 0 {
		found, err := ing.writer.LookupOwners(ctx, unseen)
		if err != nil {
			return fmt.Errorf("lookup angles: %w", err)
		}
		for id, campaignID := range found {
			ing.owners[id] = campaignID
		}
	}

	now := time.Now().UTC()
	rows := make([]domain.PerformanceRow, 0, len(ing.chunk))
	for _, p := range ing.chunk {
		if p.err != nil {
			e := *p.err
			e.Row = p.line
			ing.errs = append(ing.errs, e)
			continue
		}
		switch owner := ing.owners[p.candidate.AngleID]; {
		case owner == "":
			ing.errs = append(ing.errs, domain.RowError{
				Row:     p.line,
				Code:    domain.CodeAngleNotFound,
				Message: fmt.Sprintf("angle %s does not exist", p.candidate.AngleID),
			})
			continue
		case owner != ing.campaignID:
			ing.errs = append(ing.errs, domain.RowError{
				Row:     p.line,
				Code:    domain.CodeCrossCampaignReference,
				Message: fmt.Sprintf("angle %s belongs to another campaign", p.candidate.AngleID),
			})
			continue
		}
		rows = append(rows, toRow(ing.batchID, p.candidate, now))
	}
	ing.chunk = ing.chunk[:0]

	if len(rows) == 0 {
		return nil
	}
	if err := ing.writer.Write(ctx, rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	ing.accepted += len(rows)
	return nil
}

func toRow(batchID string, c RowCandidate, now time.Time) domain.PerformanceRow {
	return domain.PerformanceRow{
		ID:          uuid.New().String(),
		BatchID:     batchID,
		AngleID:     c.AngleID,
		Impressions: c.Impressions,
		Clicks:      c.Clicks,
		Conversions: c.Conversions,
		Spend:       c.Spend,
		Revenue:     c.Revenue,
		Platform:    c.Platform,
		Locale:      c.Locale,
		DateStart:   c.DateStart,
		DateEnd:     c.DateEnd,
		CreatedAt:   now,
	}
}

// malformed is the outcome for a file the CSV reader rejected. Nothing was
// imported, so every row read so far counts as failed.
func malformed(scanned, line int, err error) domain.BatchOutcome {
	return domain.BatchOutcome{
		Status:     domain.BatchFailed,
		RowsTotal:  scanned,
		RowsFailed: scanned,
		Errors: []domain.RowError{{
			Row:     line,
			Code:    domain.CodeMalformedCSV,
			Message: fmt.Sprintf("file is not valid CSV: %v", err),
		}},
	}
}

// indexHeader maps normalized column names to their position. The first
// occurrence of a duplicated column wins.
func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

// archive stores the raw upload when an archiver is configured and the body
// can be rewound. Failures are logged and never fail the import.
func (s *Service) archive(ctx context.Context, batch *domain.ImportBatch, body io.Reader) string {
	if s.archiver == nil {
		return ""
	}
	seeker, ok := body.(io.Seeker)
	if !ok {
		return ""
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		logger.Warn("archive rewind failed", "batch_id", batch.ID, "error", err)
		return ""
	}
	name := path.Base(batch.Filename)
	if name == "." || name == "/" || name == "" {
		name = "upload.csv"
	}
	key := fmt.Sprintf("imports/%s/%s/%s", batch.CampaignID, batch.ID, name)
	if err := s.archiver.Archive(ctx, key, body); err != nil {
		logger.Warn("archive upload failed", "batch_id", batch.ID, "key", key, "error", err)
		return ""
	}
	return key
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
