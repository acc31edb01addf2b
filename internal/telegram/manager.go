package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/logger"
)

// Status is the lifecycle state of the automation account.
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusUnauthorized Status = "UNAUTHORIZED"
	StatusError        Status = "ERROR"
)

var (
	ErrAlreadyLoggedIn = errors.New("already logged in")
	ErrQRInProgress    = errors.New("QR login already in progress")
)

// Manager owns the automation account's MTProto client. Sessions live in the
// bot database (gotgproto's sessions table); TG_SESSION_STRING seeds a client
// when the table is empty.
type Manager struct {
	db  *gorm.DB
	cfg *config.Config
	log *logger.Logger

	mu                  sync.RWMutex
	client              *gotgproto.Client
	status              Status
	clientFactory       ClientFactory
	stringClientFactory ClientFactory
	qrClientFactory     QRClientFactory

	qrMu sync.Mutex
	qr   *qrFlow // non-nil while a QR login runs
}

type qrFlow struct {
	cancel context.CancelFunc
}

func NewManager(cfg *config.Config, db *gorm.DB) *Manager {
	return &Manager{
		db:                  db,
		cfg:                 cfg,
		log:                 logger.Get().Named("telegram"),
		status:              StatusInitializing,
		clientFactory:       NewPersistentClient,
		stringClientFactory: NewStringSessionClient,
		qrClientFactory:     NewQRLogin,
	}
}

// SetClientFactory replaces how a client is built from the stored session.
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.mu.Lock()
	m.clientFactory = f
	m.mu.Unlock()
}

// SetStringClientFactory replaces how a client is built from TG_SESSION_STRING.
func (m *Manager) SetStringClientFactory(f ClientFactory) {
	m.mu.Lock()
	m.stringClientFactory = f
	m.mu.Unlock()
}

// SetQRClientFactory replaces the throwaway client used for QR login.
func (m *Manager) SetQRClientFactory(f QRClientFactory) {
	m.mu.Lock()
	m.qrClientFactory = f
	m.mu.Unlock()
}

func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// GetClient returns the ready client, or nil.
func (m *Manager) GetClient() *gotgproto.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Init restores the session from the database, falls back to
// TG_SESSION_STRING, and otherwise leaves the manager unauthorized so the bot
// keeps running until someone logs in over QR.
func (m *Manager) Init(ctx context.Context) error {
	m.setStatus(StatusInitializing)

	stored, err := LoadSession(ctx, m.db)
	if err != nil {
		// an unreadable row is treated like no session; QR login overwrites it
		m.log.Warn().Err(err).Msg("telegram: stored session is unusable")
	}

	m.mu.RLock()
	var factory ClientFactory
	var source string
	switch {
	case stored != nil:
		factory, source = m.clientFactory, "database"
	case m.cfg.TGSessionStr != "":
		factory, source = m.stringClientFactory, "session string"
	}
	m.mu.RUnlock()

	if factory == nil {
		m.log.Info().Msg("telegram: no session found, waiting for auth")
		m.setStatus(StatusUnauthorized)
		return nil
	}

	client, err := factory(ctx, m.cfg, m.db)
	if err != nil {
		// keep the app running, QR login can still fix this
		m.log.Warn().Err(err).Str("source", source).Msg("telegram: failed to initialize client, switching to unauthorized mode")
		m.setStatus(StatusUnauthorized)
		return nil
	}

	m.mu.Lock()
	m.client = client
	m.status = StatusReady
	m.mu.Unlock()

	m.log.Info().Str("source", source).Msg("telegram: client is ready")
	return nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) IsQRInProgress() bool {
	m.qrMu.Lock()
	defer m.qrMu.Unlock()
	return m.qr != nil
}

// StartQR runs the QR login flow, calling onQRCode for every token the
// server issues. It blocks until login succeeds or ctx ends, then stores the
// session and re-initialises the manager with it.
func (m *Manager) StartQR(ctx context.Context, onQRCode func(url string)) error {
	if m.GetStatus() == StatusReady {
		return ErrAlreadyLoggedIn
	}

	m.qrMu.Lock()
	if m.qr != nil {
		m.qrMu.Unlock()
		return ErrQRInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	flow := &qrFlow{cancel: cancel}
	m.qr = flow
	m.qrMu.Unlock()
	defer m.endQR(flow)

	data, err := m.awaitQRLogin(ctx, onQRCode)
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case err != nil:
		return err
	}

	if err := SaveSession(m.db, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.log.Info().Msg("telegram: QR login complete, session stored")
	return m.Init(context.WithoutCancel(ctx))
}

func (m *Manager) awaitQRLogin(ctx context.Context, onQRCode func(url string)) (*session.Data, error) {
	m.mu.RLock()
	newQR := m.qrClientFactory
	m.mu.RUnlock()

	qr, err := newQR(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("create QR client: %w", err)
	}

	var data *session.Data
	err = qr.Client.Run(ctx, func(ctx context.Context) error {
		accepted := qrlogin.OnLoginToken(&qr.Dispatcher)
		show := func(_ context.Context, token qrlogin.Token) error {
			m.log.Info().Time("expires", token.Expires()).Msg("telegram: QR token issued")
			onQRCode(token.URL())
			return nil
		}
		if _, err := qr.Client.QR().Auth(ctx, accepted, show); err != nil {
			return err
		}
		var err error
		data, err = (&session.Loader{Storage: qr.Storage}).Load(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("QR login: %w", err)
	}
	if data == nil {
		return nil, errors.New("QR login: no session data")
	}
	return data, nil
}

func (m *Manager) endQR(flow *qrFlow) {
	flow.cancel()
	m.qrMu.Lock()
	if m.qr == flow {
		m.qr = nil
	}
	m.qrMu.Unlock()
}

// CancelQR aborts a running QR login. No-op when none runs.
func (m *Manager) CancelQR() {
	m.qrMu.Lock()
	flow := m.qr
	m.qr = nil
	m.qrMu.Unlock()

	if flow != nil {
		flow.cancel()
	}
}

// Stop disconnects the client. The stored session is kept.
func (m *Manager) Stop() {
	m.CancelQR()

	m.mu.Lock()
	c := m.client
	m.client = nil
	if m.status == StatusReady {
		m.status = StatusUnauthorized
	}
	m.mu.Unlock()

	if c != nil {
		c.Stop()
	}
}
