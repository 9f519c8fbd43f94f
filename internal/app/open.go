package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/forest6511/muxpass/internal/config"
	"github.com/forest6511/muxpass/pkg/crypto"
	"github.com/forest6511/muxpass/pkg/session"
	"github.com/forest6511/muxpass/pkg/vault"
)

// Open loads the key, opens the configured store and starts an unlocked
// session. A key that cannot be read or created is fatal and is returned
// as a vault.ErrIO error. Extra session options are applied last.
func Open(cfg *config.Config, logger *zap.Logger, opts ...session.Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.DataDir, vault.DirMode); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", vault.ErrIO, err)
	}

	key, err := vault.LoadOrCreateKey(cfg.KeyPath())
	if err != nil {
		return nil, err
	}
	codec := vault.NewCodec(key)
	crypto.SecureWipe(key)

	store, err := openStore(cfg, logger)
	if err != nil {
		codec.Close()
		return nil, err
	}

	repo := vault.NewRepository(store, codec,
		vault.WithLockFile(cfg.LockPath()),
		vault.WithLogger(logger.Named("vault")),
	)

	sessionOpts := []session.Option{
		session.WithTimeout(cfg.LockTimeout),
		session.WithLogger(logger.Named("session")),
	}
	if cfg.PINBackoff {
		sessionOpts = append(sessionOpts, session.WithBackoff(session.DefaultBackoff()))
	}
	lock := session.New(append(sessionOpts, opts...)...)

	logger.Debug("store opened",
		zap.String("backend", cfg.Backend),
		zap.String("path", cfg.StorePath()))

	svc := NewService(repo, lock, logger)
	svc.keyPath = cfg.KeyPath()
	return svc, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (vault.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return vault.OpenSQLite(cfg.StorePath())
	default:
		return vault.NewFlatFile(cfg.StorePath(),
			vault.WithParseMode(vault.ParseMode(cfg.ParseMode)),
			vault.WithFlatFileLogger(logger.Named("flatfile")),
		), nil
	}
}
