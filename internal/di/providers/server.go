package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/server"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

// SocketServerHandle wraps the socket server with Shutdownable.
type SocketServerHandle struct {
	*server.Server
}

// Shutdown implements do.Shutdownable.
func (h *SocketServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideSocketServer provides the started protocol server.
func ProvideSocketServer(i do.Injector) (*SocketServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	// The admin bootstrap must run before the first client connects.
	_ = do.MustInvoke[*Bootstrap](i)

	handler := server.NewHandler(server.Services{
		Auth:        do.MustInvoke[*service.AuthService](i),
		Users:       do.MustInvoke[*service.UserService](i),
		Catalog:     do.MustInvoke[*service.CatalogService](i),
		Circulation: do.MustInvoke[*service.CirculationService](i),
		Stats:       do.MustInvoke[*service.StatsService](i),
		Emails:      do.MustInvoke[*service.EmailService](i),
		Importer:    do.MustInvoke[*service.ImportService](i),
	}, log.Logger)

	srv := server.New(cfg.Server, handler, log.Logger)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return &SocketServerHandle{Server: srv}, nil
}
