// Package valve exposes the shared irrigation-valve flag held in Firebase
// Realtime Database. An embedded controller polls the same path read-only and
// actuates the hardware, so the node and field names below are a fixed
// integration contract.
package valve

import (
	"context"
	"fmt"
	"sync"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	// Node the embedded controller watches. Do not rename.
	valveNode = "vanne"
	// Boolean field under the node. Do not rename.
	stateField = "etat"

	statePath = valveNode + "/" + stateField
)

// Database is the narrow slice of the remote store the valve needs.
type Database interface {
	Get(ctx context.Context, path string, v interface{}) error
	Update(ctx context.Context, path string, v map[string]interface{}) error
}

// Connector opens the remote database connection. It is invoked lazily, and
// again on later calls only if the previous attempt failed.
type Connector func(ctx context.Context) (Database, error)

// Store reads and writes the valve flag. All failures are soft: reads come
// back absent and writes report false, leaving the dashboard renderable with
// the valve assumed OFF.
type Store struct {
	connect Connector
	logger  *zap.Logger

	mu      sync.Mutex
	db      Database
	lastErr error
}

// Config carries the remote-store settings. CredentialsPath points at the
// service-account file; its absence is a recoverable configuration state,
// not a startup failure.
type Config struct {
	DatabaseURL     string
	CredentialsPath string
}

func NewStore(cfg Config, logger *zap.Logger) *Store {
	return NewStoreWithConnector(firebaseConnector(cfg), logger)
}

// NewStoreWithConnector lets tests and alternative backends supply the
// database connection.
func NewStoreWithConnector(connect Connector, logger *zap.Logger) *Store {
	return &Store{
		connect: connect,
		logger:  logger,
	}
}

func firebaseConnector(cfg Config) Connector {
	return func(ctx context.Context) (Database, error) {
		opt := option.WithCredentialsFile(cfg.CredentialsPath)
		app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opt)
		if err != nil {
			return nil, fmt.Errorf("initializing firebase app: %w", err)
		}
		client, err := app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening realtime database: %w", err)
		}
		return &firebaseDatabase{client: client}, nil
	}
}

// database returns the connected handle, connecting on first use. A
// successful connection is reused for the process lifetime; a failed one is
// retried on the next call. The mutex guards against racing re-initialization
// from concurrent renders.
func (s *Store) database(ctx context.Context) (Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := s.connect(ctx)
	if err != nil {
		s.lastErr = err
		s.logger.Warn("Remote flag store unavailable", zap.Error(err))
		return nil, err
	}

	s.db = db
	s.lastErr = nil
	s.logger.Info("Remote flag store connected")
	return db, nil
}

// Available reports whether the store can currently serve reads and writes.
func (s *Store) Available(ctx context.Context) bool {
	_, err := s.database(ctx)
	return err == nil
}

// LastError returns the most recent connection failure for user-facing
// diagnostics, or nil.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ReadFlag returns the current valve state. ok is false when the store is
// unavailable, the read fails, or the path holds no value; the caller must
// then fall back to the fail-safe OFF default.
func (s *Store) ReadFlag(ctx context.Context) (value bool, ok bool) {
	db, err := s.database(ctx)
	if err != nil {
		return false, false
	}

	var raw interface{}
	if err := db.Get(ctx, statePath, &raw); err != nil {
		s.logger.Warn("Reading valve state failed", zap.Error(err))
		return false, false
	}

	state, isBool := raw.(bool)
	if !isBool {
		// Path never written, or holds something unexpected.
		return false, false
	}
	return state, true
}

// WriteFlag stores the new valve state. It returns false instead of failing
// the caller on unavailability or a remote write error.
func (s *Store) WriteFlag(ctx context.Context, on bool) bool {
	db, err := s.database(ctx)
	if err != nil {
		return false
	}

	if err := db.Update(ctx, valveNode, map[string]interface{}{stateField: on}); err != nil {
		s.logger.Warn("Writing valve state failed",
			zap.Bool("requested_state", on),
			zap.Error(err))
		return false
	}

	s.logger.Info("Valve state written", zap.Bool("on", on))
	return true
}
