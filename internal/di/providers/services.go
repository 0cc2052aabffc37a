package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

// ProvideAuthService provides credential handling and registration.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewAuthService(st.Store, cfg.Auth.BcryptCost, log.Logger), nil
}

// ProvideUserService provides account management.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewUserService(st.Store, cfg.Auth.BcryptCost, log.Logger), nil
}

// ProvideCatalogService provides the book catalog.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewCatalogService(st.Store, log.Logger), nil
}

// ProvideCirculationService provides borrow/return handling.
func ProvideCirculationService(i do.Injector) (*service.CirculationService, error) {
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewCirculationService(st.Store, log.Logger), nil
}

// ProvideStatsService provides reporting and dashboards.
func ProvideStatsService(i do.Injector) (*service.StatsService, error) {
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewStatsService(st.Store, log.Logger), nil
}

// ProvideEmailService provides the outbox. Delivery is wired only when an
// SMTP host is configured; otherwise messages stay stored as drafts.
func ProvideEmailService(i do.Injector) (*service.EmailService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	var sender service.Sender
	if s := service.NewSMTPSender(cfg.SMTP); s != nil {
		sender = s
		log.Info("SMTP delivery enabled", "host", cfg.SMTP.Host)
	}
	return service.NewEmailService(st.Store, sender, log.Logger), nil
}

// ProvideImportService provides the Open Library importer.
func ProvideImportService(i do.Injector) (*service.ImportService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	st := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewImportService(st.Store, cfg.Import, log.Logger), nil
}

// Bootstrap holds one-time startup results.
type Bootstrap struct {
	// DefaultAdminEnsured is true once the fallback admin account check ran.
	DefaultAdminEnsured bool
}

// ProvideBootstrap seeds the default admin account when no admin exists.
func ProvideBootstrap(i do.Injector) (*Bootstrap, error) {
	auth := do.MustInvoke[*service.AuthService](i)
	if err := auth.EnsureDefaultAdmin(context.Background()); err != nil {
		return nil, err
	}
	return &Bootstrap{DefaultAdminEnsured: true}, nil
}
