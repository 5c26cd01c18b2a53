package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/do/v2"

	activityinadapter "worktally/internal/modules/activity/adapter/in"
	activityin "worktally/internal/modules/activity/port/in"
	activityusecase "worktally/internal/modules/activity/usecase"
	importerinadapter "worktally/internal/modules/importer/adapter/in"
	importerin "worktally/internal/modules/importer/port/in"
	"worktally/internal/platform/clock"
	"worktally/internal/platform/config"
	"worktally/internal/ui/dashboard"
)

type App struct {
	Config      config.Config
	Logger      *slog.Logger
	Dates       clock.DateProvider
	Activity    activityin.Usecase
	ActivityCLI activityinadapter.CLIHandler
	ImporterCLI importerinadapter.CLIHandler

	// Queries serves read-only processes that share the heartbeat log with
	// a separate tracker.
	Queries activityin.Usecase

	closeStore func() error
}

// New resolves the whole dependency graph for cfg. The caller owns the
// returned App and must Close it.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	registerPlatform(injector)
	registerStorage(injector)
	registerActivity(injector)
	registerImporter(injector)

	store, err := do.Invoke[transactionalStore](injector)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	activity, err := do.Invoke[activityin.Usecase](injector)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wire activity: %w", err)
	}
	importer, err := do.Invoke[importerin.Usecase](injector)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wire importer: %w", err)
	}

	dates := do.MustInvoke[clock.DateProvider](injector)
	return &App{
		Config:      cfg,
		Logger:      logger,
		Dates:       dates,
		Activity:    activity,
		Queries:     activityusecase.NewLogFollower(activity, dates),
		ActivityCLI: activityinadapter.NewCLIHandler(activity),
		ImporterCLI: importerinadapter.NewCLIHandler(importer),
		closeStore:  store.Close,
	}, nil
}

func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// StartTracking seeds the live store from today's log and closes any day
// that ended while nothing was running.
func (a *App) StartTracking(ctx context.Context) error {
	if err := a.Activity.LoadToday(ctx); err != nil {
		return err
	}
	if _, err := a.Activity.Finalize(ctx); err != nil {
		a.Logger.Warn("finalize pending days failed", "error", err)
	}
	return nil
}

func (a *App) FeedReader() activityinadapter.FeedReader {
	return activityinadapter.NewFeedReader(a.Activity, a.Logger)
}

func (a *App) Scheduler() (*activityinadapter.Scheduler, error) {
	return activityinadapter.NewScheduler(a.Activity, a.Config.Schedule.Finalize, a.Config.Schedule.Maintenance, a.Logger)
}

func (a *App) Server(addr string, accessLog io.Writer) *activityinadapter.Server {
	if addr == "" {
		addr = a.Config.ListenAddr
	}
	return activityinadapter.NewServer(activityinadapter.ServerConfig{Addr: addr, AccessLog: accessLog}, a.Queries, a.Logger)
}

func RunDashboard(app *App, refresh time.Duration) error {
	model := dashboard.New(app.Queries, refresh, app.Config.MinSessionDisplay, app.Dates.Location())
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
