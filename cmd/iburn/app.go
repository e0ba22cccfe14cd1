package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/iBurnApp/iBurn-iOS/internal/api"
	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/festival"
	"github.com/iBurnApp/iBurn-iOS/internal/importer"
	"github.com/iBurnApp/iBurn-iOS/internal/influx"
	"github.com/iBurnApp/iBurn-iOS/internal/location"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/monitor"
	"github.com/iBurnApp/iBurn-iOS/internal/otel"
	"github.com/iBurnApp/iBurn-iOS/internal/parser"
	"github.com/iBurnApp/iBurn-iOS/internal/playadb"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/view"
	"github.com/iBurnApp/iBurn-iOS/internal/worker"
)

// App holds the wired components of one process.
type App struct {
	OTel       *otel.Provider
	Festival   *festival.Context
	Dispatcher *dispatcher.Dispatcher
	Storage    storage.Backend
	DB         *playadb.DB
	Importer   *importer.Importer
	Views      *view.Registry
	Location   *location.Manager
	Worker     *worker.Manager
	Influx     *influx.Manager
	Monitor    *monitor.Service

	subs []*dispatcher.Subscription
}

// newApp builds every component from configuration. Close releases them in
// reverse order.
func newApp(ctx context.Context) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var err error
	app.OTel, err = otel.New(ctx, otel.FromConfig(config.GetOTelConfig()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	fcfg := config.GetFestivalConfig()
	app.Festival, err = festival.NewContext(festival.Settings{
		Year:      fcfg.Year,
		StartDate: fcfg.StartDate,
		Days:      fcfg.Days,
		TimeZone:  fcfg.TimeZone,
	})
	if err != nil {
		return nil, err
	}

	app.Dispatcher, err = dispatcher.New(logging.NewKVLogger(logging.NewZerolog(logOutput(), viper.GetString("logLevel"))))
	if err != nil {
		return nil, err
	}

	app.Storage, err = createStorageBackend(config.GetStorageConfig())
	if err != nil {
		return nil, err
	}
	if err := app.Storage.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cacheCfg := config.GetCacheConfig()
	app.DB, err = playadb.New(playadb.Dependencies{
		Storage:       app.Storage,
		Dispatcher:    app.Dispatcher,
		Festival:      app.Festival,
		LogManager:    SlogManager,
		CacheSize:     cacheCfg.Size,
		LowMemorySize: cacheCfg.LowMemorySize,
	})
	if err != nil {
		return nil, err
	}

	apiCfg := config.GetAPIConfig()
	var source importer.Source
	switch {
	case apiCfg.BaseURL != "":
		source = api.New(apiCfg.BaseURL, apiCfg.Timeout, apiCfg.ManifestTTL)
	case apiCfg.BundleDir != "":
		source = api.NewDirSource(apiCfg.BundleDir)
	}
	app.Importer = importer.New(importer.Dependencies{
		Storage:    app.Storage,
		Parser:     parser.NewParser(Logger, app.Festival.Year(), app.Festival.Location()),
		Source:     source,
		Publisher:  app.Dispatcher,
		LogManager: SlogManager,
		Clock:      app.Festival.Now,
	})

	app.Views, err = view.NewRegistry(view.Dependencies{
		Loader:     app.DB,
		Dispatcher: app.Dispatcher,
		LogManager: SlogManager,
		Clock:      app.Festival.Now,
	})
	if err != nil {
		return nil, err
	}
	for _, def := range view.BuiltIn(app.Festival) {
		if _, err := app.Views.Register(def); err != nil {
			return nil, err
		}
	}
	if err := app.Views.RegisterAllFiltered(view.FilteredBuiltIn(app.Festival)); err != nil {
		return nil, err
	}

	locCfg := config.GetLocationConfig()
	if locCfg.Enabled {
		var provider location.Provider
		if locCfg.Static != "" {
			p, err := location.ParseStatic(locCfg.Static)
			if err != nil {
				return nil, err
			}
			provider = p
		}
		app.Location = location.New(location.Dependencies{
			Provider:     provider,
			Objects:      app.DB,
			Dispatcher:   app.Dispatcher,
			LogManager:   SlogManager,
			PollInterval: locCfg.PollInterval,
			MinDistance:  locCfg.MinDistance,
			Breadcrumbs:  locCfg.Breadcrumbs,
		})
	}

	workerDeps := worker.Dependencies{
		Store:           app.Storage,
		Views:           app.Views,
		LogManager:      SlogManager,
		RefreshInterval: apiCfg.RefreshInterval,
		FlushInterval:   locCfg.FlushInterval,
		ViewInterval:    viper.GetDuration("views.refreshInterval"),
	}
	if source != nil {
		workerDeps.Updater = app.Importer
	}
	if app.Location != nil {
		workerDeps.Breadcrumbs = app.Location.Breadcrumbs()
	}
	app.Worker = worker.NewManager(workerDeps)
	app.subs = app.Worker.RegisterHandlers(app.Dispatcher)

	monitorDeps := monitor.Dependencies{
		Counts:     app.Storage,
		Queues:     app.Dispatcher,
		Worker:     app.Worker,
		Importer:   app.Importer,
		LogManager: SlogManager,
		Year:       app.Festival.Year(),
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
		Interval:   viper.GetDuration("influx.interval"),
	}
	if viper.GetBool("influx.enabled") {
		app.Influx = influx.NewManager(
			logging.NewZerolog(logOutput(), viper.GetString("logLevel")),
			filepath.Join(viper.GetString("logsDir"), "influx_backup.lp.gz"),
		)
		if err := app.Influx.Connect(ctx); err != nil {
			Logger.Warn("Failed to connect to InfluxDB", "error", err)
			app.Influx = nil
		} else {
			monitorDeps.Influx = app.Influx
		}
	}
	app.Monitor = monitor.NewService(monitorDeps)

	ok = true
	return app, nil
}

// Close stops background services and releases storage.
func (a *App) Close() {
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	for _, s := range a.subs {
		s.Unsubscribe()
	}
	if a.Worker != nil && a.Location != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if _, err := a.Worker.Flush(ctx); err != nil {
			Logger.Error("Failed to flush breadcrumbs", "error", err)
		}
		cancel()
	}
	if a.Views != nil {
		a.Views.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	var errs []error
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	if a.Influx != nil {
		errs = append(errs, a.Influx.Close())
	}
	if a.OTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		errs = append(errs, a.OTel.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		Logger.Error("Error during shutdown", "error", err)
	}
}
