package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/internal/config"
)

// ClientFactory builds the gotgproto client the manager serves.
type ClientFactory func(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error)

// QRClientFactory builds the bare client used for QR login.
type QRClientFactory func(cfg *config.Config) (*QRLogin, error)

// NewPersistentClient dials with the session stored in the bot database.
// gotgproto writes auth key refreshes and its peer cache back to the same db.
func NewPersistentClient(_ context.Context, cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
	return dial(cfg, sessionMaker.SqlSession(db.Dialector))
}

// NewStringSessionClient dials with TG_SESSION_STRING as printed by tg-auth.
func NewStringSessionClient(_ context.Context, cfg *config.Config, _ *gorm.DB) (*gotgproto.Client, error) {
	if cfg.TGSessionStr == "" {
		return nil, errors.New("TG_SESSION_STRING is empty")
	}
	return dial(cfg, sessionMaker.StringSession(cfg.TGSessionStr))
}

func dial(cfg *config.Config, sess sessionMaker.SessionConstructor) (*gotgproto.Client, error) {
	// an empty phone never triggers interactive login, so a dead session
	// fails here instead of prompting on stdin
	client, err := gotgproto.NewClient(cfg.TGApiID, cfg.TGApiHash, gotgproto.ClientTypePhone(""), &gotgproto.ClientOpts{
		Session:          sess,
		DisableCopyright: true,
	})
	if err != nil {
		return nil, fmt.Errorf("dial telegram: %w", err)
	}
	return client, nil
}

// QRLogin is a plain gotd client whose session lives in memory until the QR
// token is accepted.
type QRLogin struct {
	Client     *telegram.Client
	Dispatcher tg.UpdateDispatcher
	Storage    *session.StorageMemory
}

// NewQRLogin prepares a QR login client. The dispatcher receives the
// updateLoginToken update that tells the flow the code was scanned.
func NewQRLogin(cfg *config.Config) (*QRLogin, error) {
	q := &QRLogin{
		Dispatcher: tg.NewUpdateDispatcher(),
		Storage:    &session.StorageMemory{},
	}
	q.Client = telegram.NewClient(cfg.TGApiID, cfg.TGApiHash, telegram.Options{
		SessionStorage: q.Storage,
		UpdateHandler:  &q.Dispatcher,
	})
	return q, nil
}

// envelope is how gotd's session.Loader frames session data; gotgproto
// stores it as-is in sessions.data.
type envelope struct {
	Version int
	Data    session.Data
}

func encodeSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, errors.New("session data is nil")
	}
	raw, err := json.Marshal(envelope{Version: 1, Data: *data})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return &storage.Session{Version: storage.LatestVersion, Data: raw}, nil
}

// SaveSession stores data as the automation account's session, replacing
// any previous one.
func SaveSession(db *gorm.DB, data *session.Data) error {
	row, err := encodeSession(data)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&storage.Session{}); err != nil {
		return fmt.Errorf("prepare sessions table: %w", err)
	}
	if err := db.Save(row).Error; err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session, or nil when there is none.
func LoadSession(ctx context.Context, db *gorm.DB) (*session.Data, error) {
	if !db.Migrator().HasTable(&storage.Session{}) {
		return nil, nil
	}
	var row storage.Session
	err := db.WithContext(ctx).Where("version = ?", storage.LatestVersion).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(row.Data, &env); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &env.Data, nil
}
