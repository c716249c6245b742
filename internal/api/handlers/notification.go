package handlers

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"revenuerelay/internal/core"
	"revenuerelay/internal/relay"
	"revenuerelay/internal/revenue"
	"revenuerelay/internal/types"
)

//go:embed templates/info.html
var templateFS embed.FS

var infoPage = template.Must(template.ParseFS(templateFS, "templates/info.html"))

// signedPayloadField is the body field App Store Server Notifications V2
// carries the JWS in.
const signedPayloadField = "signedPayload"

// Processor runs one signed payload through the relay. Reject reports a
// payload field that is present but unusable.
type Processor interface {
	Process(ctx context.Context, signedPayload string) relay.Result
	Reject(ctx context.Context, reason string) relay.Result
}

// NotificationHandler serves the webhook endpoint: POST receives App Store
// notifications, GET renders an info page, everything else is refused.
type NotificationHandler struct {
	processor      Processor
	logger         *slog.Logger
	path           string
	productName    string
	pushConfigured bool
	infoPage       http.Handler
}

// NewNotificationHandler builds the handler for the given mount path.
// pushConfigured only changes the status badge on the info page.
func NewNotificationHandler(processor Processor, path, productName string, pushConfigured bool, logger *slog.Logger) (*NotificationHandler, error) {
	if processor == nil {
		return nil, errors.New("handlers: processor must not be nil")
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("handlers: webhook path %q must start with /", path)
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &NotificationHandler{
		processor:      processor,
		logger:         logger,
		path:           path,
		productName:    productName,
		pushConfigured: pushConfigured,
	}
	h.infoPage = gzhttp.GzipHandler(http.HandlerFunc(h.HandleInfoPage))
	return h, nil
}

// RegisterRoutes mounts the webhook path for every method so that
// unsupported methods get a 405 with an Allow header.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.HandleFunc(h.path, h.ServeHTTP)
}

func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandleNotification(w, r)
	case http.MethodGet:
		h.infoPage.ServeHTTP(w, r)
	default:
		core.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// HandleNotification processes one App Store notification. It always
// answers 200 with a relay.Result so App Store does not retry; the status
// field carries the outcome.
func (h *NotificationHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := core.DecodeJSON(w, r, &body); err != nil {
		h.logger.WarnContext(r.Context(), "rejecting unreadable notification body",
			"error", err.Error(),
			"request_id", types.GetRequestID(r.Context()),
		)
		core.JSON(w, r, http.StatusOK, relay.Failed(decodeMessage(err)))
		return
	}

	token, ok := signedPayload(body)
	if !ok {
		core.JSON(w, r, http.StatusOK, h.processor.Reject(r.Context(), "signedPayload is not a string"))
		return
	}
	core.JSON(w, r, http.StatusOK, h.processor.Process(r.Context(), token))
}

// signedPayload extracts the JWS from a decoded body. A body that is not an
// object, or a field that is absent, null, false, 0 or "", yields "" and the
// pipeline reports a missing payload. ok is false when the field holds any
// other non-string value.
func signedPayload(body any) (token string, ok bool) {
	obj, isObject := body.(map[string]any)
	if !isObject {
		return "", true
	}
	switch v := obj[signedPayloadField].(type) {
	case string:
		return v, true
	case nil:
		return "", true
	case bool:
		return "", !v
	case float64:
		return "", v == 0
	default:
		return "", false
	}
}

func decodeMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "invalid JSON in request body"
}

type infoPageData struct {
	ProductName    string
	WebhookURL     string
	PushConfigured bool
	Events         []revenue.Event
	MockBody       map[string]string
}

// HandleInfoPage renders the HTML status page with the notification URL to
// paste into App Store Connect and a button that posts the built-in sample
// notification back to this endpoint.
func (h *NotificationHandler) HandleInfoPage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := infoPage.Execute(&buf, infoPageData{
		ProductName:    h.productName,
		WebhookURL:     requestURL(r),
		PushConfigured: h.pushConfigured,
		Events:         revenue.Events(),
		MockBody:       map[string]string{signedPayloadField: relay.MockSignedPayload},
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render info page", "error", err)
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// requestURL reconstructs the public URL of the request, honouring the
// forwarding headers set by load balancers and Lambda Function URLs.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host, _, _ = strings.Cut(fwd, ",")
		host = strings.TrimSpace(host)
	}

	return scheme + "://" + host + r.URL.RequestURI()
}
