package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/server"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/view"
)

const (
	flushTimeout = 10 * time.Second
	searchLimit  = 50
)

func runCommand(cmd string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case "serve":
		return serve(ctx, app)
	case "import":
		return runImport(ctx, app, args)
	case "search":
		if len(args) == 0 {
			return errors.New("search: query required")
		}
		objs, err := app.DB.Search(ctx, strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		return printJSON(view.GroupSearch(app.Festival, objs))
	case "events":
		day := app.Festival.Now()
		if len(args) > 0 {
			day, err = app.Festival.ParseDay(args[0])
			if err != nil {
				return err
			}
		}
		occ, err := app.DB.EventsOnDay(ctx, day)
		if err != nil {
			return err
		}
		return printJSON(occ)
	case "favorite":
		if len(args) < 2 {
			return errors.New("favorite: <type> <uid> required")
		}
		t, err := model.ParseObjectType(args[0])
		if err != nil {
			return err
		}
		on, err := app.DB.ToggleFavorite(ctx, t, args[1])
		if err != nil {
			return err
		}
		Logger.Info("Favorite toggled", "type", t, "uid", args[1], "favorite", on)
		fmt.Printf("%s %s favorite=%t\n", t, args[1], on)
		return nil
	case "favorites":
		favs, err := app.DB.Favorites(ctx)
		if err != nil {
			return err
		}
		return printJSON(favs)
	case "pins":
		if len(args) == 0 {
			return errors.New("pins: GeoJSON file required")
		}
		return addPins(ctx, app, args[0])
	case "track":
		var since time.Time
		if len(args) > 0 {
			since, err = time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("track: %w", err)
			}
		}
		return printTrack(ctx, app, since)
	case "dump":
		if len(args) == 0 {
			return errors.New("dump: path required")
		}
		d, ok := app.Storage.(storage.Dumpable)
		if !ok {
			return errors.New("dump: storage backend cannot be dumped")
		}
		if err := d.DumpToDisk(args[0]); err != nil {
			return err
		}
		Logger.Info("Database dumped", "path", args[0])
		return nil
	case "status":
		st, err := app.Monitor.GetProgramStatus(ctx)
		if err != nil {
			return err
		}
		return printJSON(st)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// serve runs the workers, the location poller and the local API until a
// signal arrives.
func serve(ctx context.Context, app *App) error {
	apiCfg := config.GetAPIConfig()
	counts, err := app.Storage.Counts(ctx)
	if err != nil {
		return err
	}
	if counts.Art+counts.Camps+counts.Events == 0 && apiCfg.BundleDir != "" {
		res, err := app.Importer.ImportBundled(ctx, apiCfg.BundleDir)
		if err != nil {
			Logger.Error("Bundled import failed", "dir", apiCfg.BundleDir, "error", err)
		} else {
			Logger.Info("Bundled data imported", "result", res.String())
		}
	}

	if _, err := app.Views.RefreshAll(ctx); err != nil {
		return fmt.Errorf("failed to load views: %w", err)
	}

	if err := app.Monitor.Start(); err != nil {
		return err
	}
	defer app.Monitor.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Worker.Run(ctx) })

	if app.Location != nil && config.GetLocationConfig().Static != "" {
		g.Go(func() error {
			if err := app.Location.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	srvCfg := config.GetServerConfig()
	if srvCfg.Enabled {
		srv, err := server.New(server.Dependencies{
			DB:         app.DB,
			Views:      app.Views,
			Location:   app.Location,
			Dispatcher: app.Dispatcher,
			LogManager: SlogManager,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.ListenAndServe(ctx, srvCfg.Address) })
	}

	Logger.Info("Serving", "api", srvCfg.Enabled, "address", srvCfg.Address, "location", app.Location != nil)
	return g.Wait()
}

func runImport(ctx context.Context, app *App, args []string) error {
	start := time.Now()
	var err error
	if len(args) > 0 {
		_, err = app.Importer.ImportBundled(ctx, args[0])
	} else {
		_, err = app.Importer.LoadUpdates(ctx)
	}
	report := app.Importer.LastReport()
	for _, tr := range report.Types {
		if tr.Err != nil {
			Logger.Error("Import failed", "dataType", tr.DataType, "error", tr.Err)
			continue
		}
		Logger.Info("Imported", "dataType", tr.DataType, "changed", tr.Changed, "count", tr.Count, "skipped", tr.Skipped)
	}
	fmt.Printf("import %s in %s\n", report.Result, time.Since(start).Round(time.Millisecond))
	return err
}

func addPins(ctx context.Context, app *App, path string) error {
	landmarks, err := geo.LoadLandmarks(path)
	if err != nil {
		return err
	}
	for _, lm := range landmarks {
		title := lm.Name
		if title == "" {
			title = lm.Ref
		}
		p, err := app.DB.AddUserPin(ctx, title, lm.Lat, lm.Lon)
		if err != nil {
			return fmt.Errorf("pin %q: %w", title, err)
		}
		Logger.Debug("Pin added", "uid", p.UID, "title", p.Title)
	}
	fmt.Printf("added %d pins\n", len(landmarks))
	return nil
}

func printTrack(ctx context.Context, app *App, since time.Time) error {
	crumbs, err := app.Storage.Breadcrumbs(ctx, since)
	if err != nil {
		return err
	}
	points := make([]geo.LatLng, len(crumbs))
	for i, c := range crumbs {
		points[i] = c.LatLng()
	}
	data, err := geo.TrackGeoJSON(points)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
