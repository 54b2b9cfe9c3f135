package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
	"github.com/joseph-ayodele/contracts-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/contracts-extractor/internal/repository"
)

// multipart framing allowance on top of the file limit
const (
	formOverhead   = 1 << 20
	maxFilenameLen = 255
)

// Extractor runs the extraction pipeline for one upload.
type Extractor interface {
	Process(ctx context.Context, up pipeline.Upload, opts pipeline.Options) (*pipeline.Outcome, error)
}

// RunReader reads stored runs.
type RunReader interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Extraction, error)
	List(ctx context.Context, f repo.ListFilter) ([]*repo.Extraction, error)
}

// Exporter renders stored runs as a spreadsheet.
type Exporter interface {
	ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
}

// ReadyCheck is a named dependency probe for /readyz.
type ReadyCheck func(ctx context.Context) error

type HTTPConfig struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
	JWTSecret      string
}

// HTTPServer serves the upload UI and the JSON API.
type HTTPServer struct {
	proc     Extractor
	runs     RunReader
	exporter Exporter
	checks   map[string]ReadyCheck
	cfg      HTTPConfig
	logger   *slog.Logger
	ui       *ui
}

// NewHTTPServer wires the handlers. runs and exporter may be nil when
// persistence is disabled; their endpoints then answer 503.
func NewHTTPServer(proc Extractor, runs RunReader, exporter Exporter, cfg HTTPConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.MaxUploadBytes
	}
	return &HTTPServer{
		proc:     proc,
		runs:     runs,
		exporter: exporter,
		checks:   map[string]ReadyCheck{},
		cfg:      cfg,
		logger:   logger,
		ui:       newUI(cfg.MaxUploadBytes),
	}
}

// WithCheck adds a readiness probe.
func (s *HTTPServer) WithCheck(name string, fn ReadyCheck) *HTTPServer {
	s.checks[name] = fn
	return s
}

// Handler builds the chi router.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)

	r.Get("/", s.index)
	r.Post("/extract", s.extractPage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(newAuth(s.cfg.JWTSecret, s.logger).Authenticate)
		r.Post("/extract", s.extractAPI)
		r.Get("/extractions", s.listRuns)
		r.Get("/extractions/{id}", s.getRun)
		r.Get("/export.xlsx", s.exportXLSX)
	})
	return r
}

func (s *HTTPServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	code := http.StatusOK
	for name, fn := range s.checks {
		if err := fn(r.Context()); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	st := "ok"
	if code != http.StatusOK {
		st = "unhealthy"
	}
	writeJSON(w, code, map[string]any{"status": st, "checks": checks})
}

func (s *HTTPServer) index(w http.ResponseWriter, r *http.Request) {
	s.ui.render(w, r, http.StatusOK, pageData{Options: pipeline.DefaultOptions()}, s.logger)
}

func (s *HTTPServer) extractPage(w http.ResponseWriter, r *http.Request) {
	up, opts, err := s.readUpload(w, r)
	if err == nil {
		var out *pipeline.Outcome
		out, err = s.process(r.Context(), up, opts)
		if err == nil {
			s.ui.render(w, r, http.StatusOK, newResultPage(out), s.logger)
			return
		}
	}
	s.ui.render(w, r, common.HTTPStatus(err), pageData{Options: opts, Error: userMessage(err)}, s.logger)
}

func (s *HTTPServer) extractAPI(w http.ResponseWriter, r *http.Request) {
	up, opts, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.process(r.Context(), up, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) process(ctx context.Context, up pipeline.Upload, opts pipeline.Options) (*pipeline.Outcome, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	return s.proc.Process(ctx, up, opts)
}

// readUpload reads the multipart "file" field and the option fields.
func (s *HTTPServer) readUpload(w http.ResponseWriter, r *http.Request) (pipeline.Upload, pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return pipeline.Upload{}, opts, common.NewAppError("INPUT_ERROR",
				fmt.Sprintf("upload exceeds %d MB", s.cfg.MaxUploadBytes>>20), common.ErrTooLarge)
		}
		return pipeline.Upload{}, opts, common.NewAppError("INPUT_ERROR", "malformed upload", common.ErrInvalidInput)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	opts, err := parseOptions(r)
	if err != nil {
		return pipeline.Upload{}, opts, err
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return pipeline.Upload{}, opts, common.NewAppError("INPUT_ERROR", "no file uploaded", common.ErrInvalidInput)
	}
	defer f.Close()
	if err := common.NewValidator().Field("filename", hdr.Filename, common.MaxLength(maxFilenameLen)).Error(); err != nil {
		return pipeline.Upload{}, opts, common.NewAppError("INPUT_ERROR", "file name is too long", err)
	}
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return pipeline.Upload{}, opts, common.NewAppError("INPUT_ERROR", "read upload", common.ErrInvalidInput)
	}
	return pipeline.Upload{Filename: hdr.Filename, Data: data}, opts, nil
}

func parseOptions(r *http.Request) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	if v := r.FormValue("dpi"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, common.NewAppError("INPUT_ERROR", "dpi must be an integer", common.ErrInvalidInput)
		}
		opts.DPI = n
	}
	if v := r.FormValue("max_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, common.NewAppError("INPUT_ERROR", "max_pages must be an integer", common.ErrInvalidInput)
		}
		opts.MaxPages = n
	}
	opts.Enhanced = formBool(r.FormValue("enhanced"))
	opts.ForceOCR = formBool(r.FormValue("force_ocr"))
	return opts.Normalize(), nil
}

// formBool accepts checkbox "on" as well as strconv booleans.
func formBool(v string) bool {
	if strings.EqualFold(v, "on") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *HTTPServer) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeUnavailable(w, "persistence is disabled")
		return
	}
	q := r.URL.Query()
	from, to, err := parseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}
	f := repo.ListFilter{Status: constants.RunStatus(strings.ToUpper(q.Get("status")))}
	if f.Status != "" {
		if err := common.NewValidator().Field("status", string(f.Status), common.OneOf(constants.RunStatuses...)).Error(); err != nil {
			writeError(w, common.NewAppError("INPUT_ERROR", "status must be one of "+strings.Join(constants.RunStatuses, ", "), err))
			return
		}
	}
	if from != nil {
		f.From = *from
	}
	if to != nil {
		f.To = *to
	}
	if f.Limit, err = queryInt(q.Get("limit"), 50, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if f.Offset, err = queryInt(q.Get("offset"), 0, "offset"); err != nil {
		writeError(w, err)
		return
	}
	f.Limit = min(f.Limit, 500)

	rows, err := s.runs.List(r.Context(), f)
	if err != nil {
		common.LoggerFrom(r.Context(), s.logger).Error("http.list.failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows, "count": len(rows), "limit": f.Limit, "offset": f.Offset})
}

func (s *HTTPServer) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeUnavailable(w, "persistence is disabled")
		return
	}
	raw := chi.URLParam(r, "id")
	if err := common.NewValidator().Field("id", raw, common.UUID).Error(); err != nil {
		writeError(w, common.NewAppError("INPUT_ERROR", "id must be a UUID", err))
		return
	}
	id := uuid.MustParse(raw)
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *HTTPServer) exportXLSX(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeUnavailable(w, "persistence is disabled")
		return
	}
	from, to, err := parseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := s.exporter.ExportXLSX(r.Context(), from, to)
	if err != nil {
		common.LoggerFrom(r.Context(), s.logger).Error("http.export.failed", "error", err)
		writeError(w, err)
		return
	}
	name := "extractions_" + time.Now().UTC().Format("20060102_150405") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// parseDateRange reads YYYY-MM-DD bounds; "to" is inclusive and becomes
// the start of the following day.
func parseDateRange(fromStr, toStr string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromStr != "" {
		t, err := time.Parse(time.DateOnly, fromStr)
		if err != nil {
			return nil, nil, common.NewAppError("INPUT_ERROR", "from must be YYYY-MM-DD", common.ErrInvalidInput)
		}
		from = &t
	}
	if toStr != "" {
		t, err := time.Parse(time.DateOnly, toStr)
		if err != nil {
			return nil, nil, common.NewAppError("INPUT_ERROR", "to must be YYYY-MM-DD", common.ErrInvalidInput)
		}
		t = t.AddDate(0, 0, 1)
		to = &t
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, common.NewAppError("INPUT_ERROR", "from must not be after to", common.ErrInvalidInput)
	}
	return from, to, nil
}

func queryInt(v string, def int, name string) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, common.NewAppError("INPUT_ERROR", name+" must be a non-negative integer", common.ErrInvalidInput)
	}
	return n, nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: userMessage(err)}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
	}
	writeJSON(w, common.HTTPStatus(err), body)
}

func writeUnavailable(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: msg})
}

// userMessage hides internal details of unexpected errors.
func userMessage(err error) string {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr) && (common.IsInputError(err) || errors.Is(err, common.ErrNotFound)):
		return appErr.Message
	case common.IsInputError(err), errors.Is(err, common.ErrNotFound):
		return err.Error()
	case errors.Is(err, common.ErrLLMUnavailable):
		return "language model is unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	default:
		return "internal error"
	}
}
