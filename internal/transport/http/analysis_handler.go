// Package http contains the REST handlers for the analysis API: upload,
// table, summary, charts, filter options and Excel export.
package http

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"fleetpulse/internal/config"
	"fleetpulse/internal/errors"
	"fleetpulse/internal/report"
	"fleetpulse/internal/services"
)

// uploadFieldName is the multipart form field carrying the CSV files.
const uploadFieldName = "files"

// AnalysisHandler serves the /api/analysis routes.
type AnalysisHandler struct {
	service  *services.AnalysisService
	upload   config.UploadConfig
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAnalysisHandler creates the handler.
func NewAnalysisHandler(service *services.AnalysisService, upload config.UploadConfig, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:  service,
		upload:   upload,
		validate: validator.New(),
		logger:   logger.With(slog.String("handler", "analysis")),
	}
}

// Routes mounts the analysis endpoints.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/files", h.Upload)
	r.Get("/table", h.Table)
	r.Get("/summary", h.Summary)
	r.Get("/charts", h.Charts)
	r.Get("/filters", h.FilterOptions)
	r.Get("/export", h.Export)
	return r
}

// Upload handles POST /api/analysis/files. Accepts a multipart form with one
// or more files in the "files" field and replaces the session dataset.
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.upload.MaxFileSize*int64(h.upload.MaxFiles) + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.respondError(w, r, errors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, apiErr := h.readUploadedFiles(r.MultipartForm.File[uploadFieldName])
	if apiErr != nil {
		h.respondError(w, r, apiErr)
		return
	}

	result, err := h.service.ProcessUpload(r.Context(), files)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

func (h *AnalysisHandler) readUploadedFiles(headers []*multipart.FileHeader) ([]services.UploadedFile, *errors.APIError) {
	if len(headers) == 0 {
		return nil, errors.ErrEmptyUpload
	}
	if len(headers) > h.upload.MaxFiles {
		return nil, errors.ErrTooManyFiles(h.upload.MaxFiles)
	}

	files := make([]services.UploadedFile, 0, len(headers))
	for _, header := range headers {
		if header.Size > h.upload.MaxFileSize {
			return nil, errors.ErrFileTooLarge(header.Filename, h.upload.MaxFileSize)
		}

		f, err := header.Open()
		if err != nil {
			return nil, errors.InvalidRequestWithError(err)
		}
		data, err := io.ReadAll(io.LimitReader(f, h.upload.MaxFileSize+1))
		f.Close()
		if err != nil {
			return nil, errors.InvalidRequestWithError(err)
		}
		if int64(len(data)) > h.upload.MaxFileSize {
			return nil, errors.ErrFileTooLarge(header.Filename, h.upload.MaxFileSize)
		}

		files = append(files, services.UploadedFile{Name: header.Filename, Data: data})
	}
	return files, nil
}

// Table handles GET /api/analysis/table.
func (h *AnalysisHandler) Table(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := h.filterFromQuery(r)
	if apiErr != nil {
		h.respondError(w, r, apiErr)
		return
	}

	rows, err := h.service.Table(filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"rows": rows, "count": len(rows)})
}

// Summary handles GET /api/analysis/summary.
func (h *AnalysisHandler) Summary(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := h.filterFromQuery(r)
	if apiErr != nil {
		h.respondError(w, r, apiErr)
		return
	}

	rollup, err := h.service.Summary(filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, rollup)
}

// Charts handles GET /api/analysis/charts.
func (h *AnalysisHandler) Charts(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := h.filterFromQuery(r)
	if apiErr != nil {
		h.respondError(w, r, apiErr)
		return
	}

	payload, err := h.service.Charts(filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, payload)
}

// FilterOptions handles GET /api/analysis/filters.
func (h *AnalysisHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.FilterOptions()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	render.JSON(w, r, opts)
}

// Export handles GET /api/analysis/export, streaming the styled workbook.
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := h.filterFromQuery(r)
	if apiErr != nil {
		h.respondError(w, r, apiErr)
		return
	}

	raw, name, err := h.service.Export(filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.Write(raw)
}

// filterFromQuery parses the repeated "vessel" parameter and the date range
// and validates the date format.
func (h *AnalysisHandler) filterFromQuery(r *http.Request) (services.Filter, *errors.APIError) {
	query := r.URL.Query()
	filter := services.Filter{
		Vessels:  query["vessel"],
		DateFrom: query.Get("date_from"),
		DateTo:   query.Get("date_to"),
	}

	if err := h.validate.Struct(filter); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]errors.ValidationError, 0, len(verrs))
			for _, ve := range verrs {
				fields = append(fields, errors.ValidationError{
					Field:   ve.Field(),
					Message: "must use DD-MM-YYYY format",
				})
			}
			return services.Filter{}, errors.NewValidationErrors(fields)
		}
		return services.Filter{}, errors.InvalidRequestWithError(err)
	}
	return filter, nil
}

func (h *AnalysisHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := err.(*errors.APIError)
	if !ok {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path))
		apiErr = errors.ErrInternalServer
	}
	render.Render(w, r, errors.NewErrorResponse(apiErr))
}
