package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-server/internal/backup"
	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
)

// BackupHandle wraps the backup service with Shutdownable. The Service
// field stays nil when snapshots are not configured.
type BackupHandle struct {
	Service *backup.Service
}

// Shutdown implements do.Shutdownable.
func (h *BackupHandle) Shutdown() error {
	if h.Service != nil {
		h.Service.Stop()
	}
	return nil
}

// ProvideBackup provides the periodic snapshot service, started when a
// backup directory is configured.
func ProvideBackup(i do.Injector) (*BackupHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Backup.Dir == "" {
		return &BackupHandle{}, nil
	}

	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := backup.New(cfg.Backup, st.Store, log.Logger)
	if err := svc.Start(); err != nil {
		return nil, err
	}
	log.Info("Backup snapshots enabled",
		"dir", cfg.Backup.Dir,
		"interval", cfg.Backup.Interval,
		"keep", cfg.Backup.Keep,
	)
	return &BackupHandle{Service: svc}, nil
}
