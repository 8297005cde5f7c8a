package notifications

import (
	"errors"
	"io"
	"net/http"

	"github.com/bissquit/mediahook/internal/classify"
	"github.com/bissquit/mediahook/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodyBytes bounds inbound webhook bodies.
const DefaultMaxBodyBytes = 1 << 20

var errorMappings = []httputil.ErrorMapping{
	{Error: classify.ErrMalformedPayload, Status: http.StatusBadRequest, Message: "malformed payload"},
	{Error: ErrShuttingDown, Status: http.StatusServiceUnavailable, Message: "service is shutting down"},
}

// Handler receives media-server webhooks.
type Handler struct {
	service      *Service
	path         string
	maxBodyBytes int64
}

// NewHandler creates a new webhook handler serving POST requests on path.
func NewHandler(service *Service, path string, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		service:      service,
		path:         path,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes registers the webhook route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(h.path, h.Receive)
}

// Receive ingests one notification. The Content-Type header is ignored;
// the body is classified by its content.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "failed to read body")
		return
	}

	outcome, err := h.service.Ingest(r.Context(), body, r.Header)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	status := http.StatusOK
	if outcome == OutcomeDuplicate {
		status = http.StatusAccepted
	}
	httputil.JSON(w, status, map[string]string{"status": outcome.String()})
}
