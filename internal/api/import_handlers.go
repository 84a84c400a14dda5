package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/copyloop/internal/pkg/httputil"
	"github.com/ignite/copyloop/internal/service/performance"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// HandleImport ingests a CSV uploaded as the multipart field "file".
//
//	POST /api/campaigns/{campaignID}/imports
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		uploadTooLarge(w, h.maxUploadBytes)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadTooLarge(w, tooLarge.Limit)
			return
		}
		httputil.ErrorWithCode(w, http.StatusBadRequest, codeInvalidInput, "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.ErrorWithCode(w, http.StatusBadRequest, codeInvalidInput, "file is required")
		return
	}
	defer file.Close()

	// multipart.File is seekable, so the service can archive the raw upload.
	res, err := h.performance.Import(r.Context(), performance.ImportInput{
		CampaignID: chi.URLParam(r, "campaignID"),
		Filename:   header.Filename,
		Body:       file,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, res)
}

func uploadTooLarge(w http.ResponseWriter, limit int64) {
	httputil.ErrorWithCode(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
		fmt.Sprintf("upload exceeds %d bytes", limit))
}

// HandleListImports returns a campaign's import batches, newest first.
//
//	GET /api/campaigns/{campaignID}/imports?limit=
func (h *Handlers) HandleListImports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.ErrorWithCode(w, http.StatusBadRequest, codeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = n
	}
	batches, err := h.performance.ListBatches(r.Context(), chi.URLParam(r, "campaignID"), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"batches": batches,
		"count":   len(batches),
	})
}

// HandleGetImport returns one batch with its row errors.
//
//	GET /api/imports/{batchID}
func (h *Handlers) HandleGetImport(w http.ResponseWriter, r *http.Request) {
	batch, err := h.performance.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, batch)
}

// HandleImportTemplate serves the expected CSV header as a download.
//
//	GET /api/imports/template
func (h *Handlers) HandleImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="performance_template.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(performance.Template()))
}
