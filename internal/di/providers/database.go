package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/store/sqlite"
)

// defaultDatabasePath is used when no DB path is configured.
const defaultDatabasePath = "library.db"

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Database.Path
	if path == "" {
		path = defaultDatabasePath
	}
	db, err := sqlite.Open(path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", path)
	return &StoreHandle{Store: db}, nil
}
