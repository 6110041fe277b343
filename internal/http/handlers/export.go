package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/service"
)

// ExportHandler serves file downloads of exported notes. These are raw
// chi handlers rather than huma operations because the response is a
// file attachment whose content type depends on the requested format.
type ExportHandler struct {
	exportSvc *service.ExportService
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exportSvc *service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportNotes streams an export of tasting notes.
// Query parameters: format (json|csv|markdown), status (optional
// lifecycle filter), upload (also store in object storage).
func (h *ExportHandler) ExportNotes(w http.ResponseWriter, r *http.Request) {
	format, err := service.ParseExportFormat(formatParam(r))
	if err != nil {
		writeExportError(w, err)
		return
	}

	status := models.NoteStatus(r.URL.Query().Get("status"))
	upload := r.URL.Query().Get("upload") == "true"

	file, err := h.exportSvc.ExportNotes(r.Context(), format, status, upload)
	if err != nil {
		writeExportError(w, err)
		return
	}
	serveExport(w, file)
}

// ExportCalibration streams an export of the calibration scale.
func (h *ExportHandler) ExportCalibration(w http.ResponseWriter, r *http.Request) {
	format, err := service.ParseExportFormat(formatParam(r))
	if err != nil {
		writeExportError(w, err)
		return
	}

	file, err := h.exportSvc.ExportCalibration(r.Context(), format)
	if err != nil {
		writeExportError(w, err)
		return
	}
	serveExport(w, file)
}

func formatParam(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	return "json"
}

func serveExport(w http.ResponseWriter, file *service.ExportFile) {
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	if file.StorageKey != "" {
		w.Header().Set("X-Storage-Key", file.StorageKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func writeExportError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrFeatureNotLicensed):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrStorageDisabled):
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
