package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samber/do/v2"

	activityoutadapter "worktally/internal/modules/activity/adapter/out"
	activityin "worktally/internal/modules/activity/port/in"
	activityout "worktally/internal/modules/activity/port/out"
	activityservice "worktally/internal/modules/activity/service"
	activityusecase "worktally/internal/modules/activity/usecase"
	importeroutadapter "worktally/internal/modules/importer/adapter/out"
	importerin "worktally/internal/modules/importer/port/in"
	importerservice "worktally/internal/modules/importer/service"
	importerusecase "worktally/internal/modules/importer/usecase"
	"worktally/internal/platform/clock"
	"worktally/internal/platform/config"
	"worktally/internal/platform/id"
	"worktally/internal/platform/tx"
)

const databaseInitTimeout = 15 * time.Second

// transactionalStore is what both storage drivers provide.
type transactionalStore interface {
	activityout.Store
	TxManager() tx.Manager
}

func registerPlatform(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (clock.DateProvider, error) {
		cfg := do.MustInvoke[config.Config](i)
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		return clock.NewLocalDates(clock.SystemClock{}, loc), nil
	})
	do.Provide(injector, func(do.Injector) (id.Generator, error) {
		return id.UUID{}, nil
	})
	do.Provide(injector, func(i do.Injector) (activityout.Notifier, error) {
		if do.MustInvoke[config.Config](i).Notifications {
			return activityoutadapter.NewDesktopNotifier("worktally"), nil
		}
		return activityoutadapter.NoopNotifier{}, nil
	})
}

func registerStorage(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transactionalStore, error) {
		cfg := do.MustInvoke[config.Config](i)
		switch cfg.Storage.Driver {
		case config.DriverPostgres:
			ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
			defer cancel()
			return activityoutadapter.NewPostgresStore(ctx, cfg.Storage.DSN)
		default:
			return activityoutadapter.NewSQLiteStore(cfg.DBPath)
		}
	})
	do.Provide(injector, func(i do.Injector) (tx.Manager, error) {
		return do.MustInvoke[transactionalStore](i).TxManager(), nil
	})
}

func registerActivity(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*activityservice.LiveStore, error) {
		return activityservice.NewLiveStore(do.MustInvoke[clock.DateProvider](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*activityservice.AggregateCache, error) {
		store := do.MustInvoke[transactionalStore](i)
		return activityservice.NewAggregateCache(store, store, do.MustInvoke[clock.DateProvider](i), do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*activityservice.DailyCache, error) {
		store := do.MustInvoke[transactionalStore](i)
		return activityservice.NewDailyCache(
			store,
			store,
			do.MustInvoke[*activityservice.AggregateCache](i),
			do.MustInvoke[tx.Manager](i),
			do.MustInvoke[clock.DateProvider](i),
			do.MustInvoke[activityout.Notifier](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*activityservice.TrackingService, error) {
		return activityservice.NewTrackingService(
			do.MustInvoke[transactionalStore](i),
			do.MustInvoke[*activityservice.LiveStore](i),
			do.MustInvoke[*activityservice.DailyCache](i),
			do.MustInvoke[clock.DateProvider](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*activityservice.StatsService, error) {
		return activityservice.NewStatsService(
			do.MustInvoke[*activityservice.LiveStore](i),
			do.MustInvoke[*activityservice.DailyCache](i),
			do.MustInvoke[*activityservice.AggregateCache](i),
			do.MustInvoke[transactionalStore](i),
			do.MustInvoke[clock.DateProvider](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*activityservice.ImportService, error) {
		store := do.MustInvoke[transactionalStore](i)
		return activityservice.NewImportService(
			store,
			store,
			do.MustInvoke[*activityservice.DailyCache](i),
			do.MustInvoke[tx.Manager](i),
			do.MustInvoke[clock.DateProvider](i),
			do.MustInvoke[id.Generator](i),
			do.MustInvoke[config.Config](i).HeartbeatInterval,
			do.MustInvoke[*slog.Logger](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (*activityservice.MaintenanceService, error) {
		store := do.MustInvoke[transactionalStore](i)
		return activityservice.NewMaintenanceService(
			store,
			store,
			do.MustInvoke[*activityservice.DailyCache](i),
			do.MustInvoke[*activityservice.AggregateCache](i),
			do.MustInvoke[clock.DateProvider](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})
	do.Provide(injector, func(i do.Injector) (activityin.Usecase, error) {
		return activityusecase.NewInteractor(
			do.MustInvoke[*activityservice.TrackingService](i),
			do.MustInvoke[*activityservice.StatsService](i),
			do.MustInvoke[*activityservice.ImportService](i),
			do.MustInvoke[*activityservice.MaintenanceService](i),
			do.MustInvoke[clock.DateProvider](i),
		), nil
	})
}

func registerImporter(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (importerin.Usecase, error) {
		cfg := do.MustInvoke[config.Config](i)
		if cfg.PluginDir == "" {
			return nil, fmt.Errorf("plugin dir is required")
		}
		svc := importerservice.NewImporterService(
			importeroutadapter.NewFileManifestStore(cfg.PluginDir),
			importeroutadapter.NewGRPCHost(os.Stderr),
		)
		return importerusecase.NewInteractor(svc, do.MustInvoke[activityin.Usecase](i)), nil
	})
}
