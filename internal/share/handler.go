package share

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quickshare/service/internal/logging"
	"github.com/quickshare/service/internal/metrics"
	"github.com/quickshare/service/internal/response"
	"github.com/quickshare/service/internal/storage"
)

// streamBufferSize bounds the memory used per download.
const streamBufferSize = 32 * 1024

//go:embed templates/*.html
var templateFS embed.FS

var (
	formTemplate   = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/upload_form.html"))
	resultTemplate = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/upload_result.html"))
)

// Limits bounds upload and download transfers.
type Limits struct {
	// MaxUploadBytes caps the upload body; <= 0 disables the limit.
	MaxUploadBytes int64
	// TransferTimeout, when positive, replaces the server's read and write
	// deadlines for a single upload or download.
	TransferTimeout time.Duration
}

// Handler holds the HTTP handlers for uploading and serving files.
type Handler struct {
	svc     *Service
	metrics *metrics.Metrics
	limits  Limits
	log     *zap.Logger
}

// NewHandler creates a new share Handler.
func NewHandler(svc *Service, m *metrics.Metrics, limits Limits, log *zap.Logger) *Handler {
	return &Handler{svc: svc, metrics: m, limits: limits, log: log}
}

// RegisterRoutes mounts the handlers on r. The upload form and action sit
// behind auth; uploadLimit is applied to the upload action only. The file
// endpoint is public: knowing the slug is the capability.
func (h *Handler) RegisterRoutes(r chi.Router, auth, uploadLimit func(http.Handler) http.Handler) {
	r.With(auth).Get("/", h.UploadForm)
	r.With(auth, uploadLimit).Post("/upload", h.Upload)
	// A wildcard rather than {uid}, so "/file/../x" reaches the validator and gets a 400.
	r.Get("/file/*", h.ServeFile)
}

// UploadForm godoc
//
//	@Summary		Upload form
//	@Description	HTML page with a multipart form posting a single file to /upload.
//	@Tags			share
//	@Produce		html
//	@Security		BasicAuth
//	@Success		200	{string}	string	"HTML page"
//	@Failure		401	{string}	string	"Unauthorized"
//	@Router			/ [get]
func (h *Handler) UploadForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, formTemplate, nil)
}

// Upload godoc
//
//	@Summary		Upload and share a file
//	@Description	Stores the file under "{uuid}-{filename}", creates a short link for it and renders both URLs.
//	@Tags			share
//	@Accept			mpfd
//	@Produce		html
//	@Security		BasicAuth
//	@Param			file	formData	file	true	"File to share"
//	@Success		200		{string}	string	"HTML page with the short and long URL"
//	@Failure		400		{string}	string	"No file uploaded"
//	@Failure		401		{string}	string	"Unauthorized"
//	@Failure		413		{string}	string	"File too large"
//	@Failure		429		{string}	string	"Rate limit exceeded"
//	@Failure		500		{string}	string	"Failed to store file"
//	@Failure		502		{string}	string	"Failed to create short link"
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.log)

	h.extendDeadlines(w, r, true)
	if h.limits.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxUploadBytes)
	}

	part, err := filePart(r)
	if err != nil {
		if isTooLarge(err) {
			h.metrics.Uploads.WithLabelValues(metrics.ResultTooLarge).Inc()
			response.TooLarge(w, "File too large")
			return
		}
		h.metrics.Uploads.WithLabelValues(metrics.ResultBadRequest).Inc()
		response.BadRequest(w, "No file uploaded")
		return
	}
	defer part.Close()

	upload, err := h.svc.Upload(ctx, part.FileName(), part, -1)
	switch {
	case err == nil:
	case isTooLarge(err):
		h.metrics.Uploads.WithLabelValues(metrics.ResultTooLarge).Inc()
		response.TooLarge(w, "File too large")
		return
	case errors.Is(err, ErrShorten):
		log.Error("shortener call failed", zap.Error(err))
		h.metrics.Uploads.WithLabelValues(metrics.ResultShortenFail).Inc()
		response.BadGateway(w, "Failed to create short link")
		return
	default:
		log.Error("storing upload failed", zap.Error(err))
		h.metrics.Uploads.WithLabelValues(metrics.ResultStoreError).Inc()
		response.InternalError(w, "Failed to store file")
		return
	}

	h.metrics.Uploads.WithLabelValues(metrics.ResultOK).Inc()
	h.metrics.UploadBytes.Add(float64(upload.Size))
	h.render(w, r, resultTemplate, upload)
}

// ServeFile godoc
//
//	@Summary		Download a shared file
//	@Description	Streams the stored file inline. No authentication: the random slug is the only protection.
//	@Tags			share
//	@Produce		octet-stream
//	@Param			uid	path		string	true	"File slug, [A-Za-z0-9_.-]+"
//	@Success		200	{file}		file	"File content"
//	@Failure		400	{string}	string	"Invalid file name"
//	@Failure		404	{string}	string	"File not found"
//	@Router			/file/{uid} [get]
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, h.log)
	uid := chi.URLParam(r, "*")

	obj, err := h.svc.Open(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrInvalidSlug) || errors.Is(err, storage.ErrInvalidKey) {
			h.metrics.Downloads.WithLabelValues(metrics.ResultBadRequest).Inc()
			response.BadRequest(w, "Invalid file name")
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("open stored file failed", zap.String("slug", uid), zap.Error(err))
		}
		h.metrics.Downloads.WithLabelValues(metrics.ResultNotFound).Inc()
		response.NotFound(w, "File not found")
		return
	}
	defer obj.Close()
	h.extendDeadlines(w, r, false)

	header := w.Header()
	header.Set("Content-Type", ContentType(uid))
	header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", uid))
	header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	header.Set("X-Content-Type-Options", "nosniff")
	// Uploaded HTML must not run scripts in this origin.
	header.Set("Content-Security-Policy", "sandbox")
	w.WriteHeader(http.StatusOK)

	n, err := io.CopyBuffer(w, obj, make([]byte, streamBufferSize))
	h.metrics.DownloadBytes.Add(float64(n))
	if err != nil {
		// Headers are gone already; all that is left is to record it.
		log.Warn("streaming file interrupted", zap.String("slug", uid), zap.Int64("sent", n), zap.Error(err))
		h.metrics.Downloads.WithLabelValues(metrics.ResultError).Inc()
		return
	}
	h.metrics.Downloads.WithLabelValues(metrics.ResultOK).Inc()
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.FromContext(r.Context(), h.log).Error("render template failed", zap.Error(err))
		response.InternalError(w, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// extendDeadlines moves the connection deadlines TransferTimeout into the
// future, so large bodies are not cut off by the server-wide timeouts.
func (h *Handler) extendDeadlines(w http.ResponseWriter, r *http.Request, read bool) {
	if h.limits.TransferTimeout <= 0 {
		return
	}
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(h.limits.TransferTimeout)

	var errs []error
	if read {
		errs = append(errs, rc.SetReadDeadline(deadline))
	}
	errs = append(errs, rc.SetWriteDeadline(deadline))
	if err := errors.Join(errs...); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.FromContext(r.Context(), h.log).Debug("extend transfer deadline failed", zap.Error(err))
	}
}

// filePart advances the multipart stream to the first part of the "file"
// field that carries a filename.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
