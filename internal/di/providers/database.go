package providers

import (
	"github.com/samber/do/v2"

	"github.com/skywatch-app/skywatch-server/internal/config"
	"github.com/skywatch-app/skywatch-server/internal/cursor"
	"github.com/skywatch-app/skywatch-server/internal/logger"
	"github.com/skywatch-app/skywatch-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.DatabasePath()
	db, err := store.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ProvideCursorStore provides the durable stream position store.
func ProvideCursorStore(i do.Injector) (*cursor.FileStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cs, err := cursor.NewFileStore(cfg.CursorPath())
	if err != nil {
		return nil, err
	}

	if seq, ok, err := cs.Load(); err != nil {
		log.Warn("stored cursor unreadable, starting live", "error", err)
	} else if ok {
		log.Info("resuming from stored cursor", "seq", seq)
	} else {
		log.Info("no stored cursor, starting live")
	}

	return cs, nil
}
