package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// qrTimeout bounds an abandoned QR login; each token lives about 30s and the
// flow keeps issuing new ones until then.
const qrTimeout = 5 * time.Minute

// AuthHandler logs the automation account in over QR. Codes and the result
// are published as events, the ops page shows them from the websocket.
type AuthHandler struct {
	client    TelegramClient
	publisher events.Publisher
	log       *logger.Logger
	timeout   time.Duration

	mu      sync.Mutex
	running bool // a runQR goroutine was launched by this handler
}

// NewAuthHandler creates an AuthHandler. A nil publisher drops the events.
func NewAuthHandler(client TelegramClient, publisher events.Publisher) *AuthHandler {
	if publisher == nil {
		publisher = events.Nop
	}
	return &AuthHandler{
		client:    client,
		publisher: publisher,
		log:       logger.Get().Named("auth"),
		timeout:   qrTimeout,
	}
}

type authStatus struct {
	Status       telegram.Status `json:"status"`
	Ready        bool            `json:"ready"`
	QRInProgress bool            `json:"qr_in_progress"`
}

func (h *AuthHandler) status() authStatus {
	s := h.client.GetStatus()
	return authStatus{
		Status:       s,
		Ready:        s == telegram.StatusReady,
		QRInProgress: h.client.IsQRInProgress(),
	}
}

// GetStatus reports whether the account is logged in.
func (h *AuthHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.status())
}

// StartQR starts a QR login in the background and answers right away.
func (h *AuthHandler) StartQR(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.status()
	switch {
	case st.Ready:
		respondError(w, http.StatusConflict, "already logged in")
		return
	case st.QRInProgress || h.running:
		st.QRInProgress = true
		respondJSON(w, http.StatusAccepted, st)
		return
	}

	h.running = true
	go h.runQR()

	st.QRInProgress = true
	respondJSON(w, http.StatusAccepted, st)
}

// CancelQR aborts a running QR login.
func (h *AuthHandler) CancelQR(w http.ResponseWriter, _ *http.Request) {
	h.client.CancelQR()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) runQR() {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	err := h.client.StartQR(ctx, func(url string) {
		h.notify(events.AuthQRCode, map[string]string{"url": url})
	})
	switch {
	case err == nil:
		h.notify(events.AuthStatus, map[string]string{"status": string(telegram.StatusReady)})
	case errors.Is(err, context.Canceled),
		errors.Is(err, telegram.ErrQRInProgress),
		errors.Is(err, telegram.ErrAlreadyLoggedIn):
		// canceled by the operator, or another login owns the account
	case errors.Is(err, context.DeadlineExceeded):
		h.notify(events.AuthStatus, map[string]string{"status": "expired"})
	default:
		h.notify(events.AuthStatus, map[string]string{"status": "error", "message": err.Error()})
	}
}

func (h *AuthHandler) notify(t events.Type, payload map[string]string) {
	if err := h.publisher.Publish(context.Background(), events.New(t, payload)); err != nil {
		h.log.Warn().Err(err).Str("type", string(t)).Msg("failed to publish auth event")
	}
}
