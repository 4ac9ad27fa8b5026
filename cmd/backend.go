package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chargecal/chargeapi"
	"chargecal/config"
	"chargecal/controller"
	"chargecal/holiday"
	"chargecal/internal/logging"
	"chargecal/storage"
)

const (
	backendRemote = "remote"
	backendLocal  = "local"

	userAgent = "chargecal/1.0"
)

// app bundles what a command needs: validated config, the selected backend and
// a controller on top of it.
type app struct {
	cfg    *config.Config
	loc    *time.Location
	logger zerolog.Logger
	client chargeapi.Client
	store  *storage.SQLiteStore
	ctrl   *controller.Controller
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// requireStore fails for commands that only make sense on the local database.
func (a *app) requireStore(command string) (*storage.SQLiteStore, error) {
	if a.store == nil {
		return nil, fmt.Errorf("%s requires --backend %s", command, backendLocal)
	}
	return a.store, nil
}

func openApp(backend string, logOutput io.Writer) (*app, error) {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, logOutput)
	if err != nil {
		return nil, err
	}

	out := &app{cfg: cfg, loc: loc, logger: logger}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", backendRemote:
		client, err := chargeapi.NewClient(chargeapi.ClientConfig{
			BaseURL:   cfg.API.URL,
			Token:     cfg.API.Token,
			Timeout:   cfg.API.Timeout,
			UserAgent: userAgent,
		})
		if err != nil {
			return nil, err
		}
		out.client = client
	case backendLocal:
		store, err := storage.OpenSQLite(cfg.Storage.Path, loc)
		if err != nil {
			return nil, err
		}
		out.store = store
		out.client = store
	default:
		return nil, fmt.Errorf("unsupported backend %q (supported: %s, %s)", backend, backendRemote, backendLocal)
	}

	holidays, err := loadHolidayFile(cfg.Holidays.File, loc, time.Now())
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	out.ctrl = controller.New(out.client, controller.Options{
		Location: loc,
		Holidays: holidays,
		Logger:   &out.logger,
	})
	return out, nil
}

// loadHolidayFile reads the configured holiday file. Recurring ICS rules are
// expanded from the start of last year to the end of next year.
func loadHolidayFile(path string, loc *time.Location, now time.Time) (*holiday.Calendar, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	year := now.In(loc).Year()
	entries, err := readHolidayEntries(
		path,
		loc,
		time.Date(year-1, time.January, 1, 0, 0, 0, 0, loc),
		time.Date(year+1, time.December, 31, 23, 59, 59, 0, loc),
	)
	if err != nil {
		return nil, err
	}
	return holiday.NewCalendar(entries...), nil
}

func readHolidayEntries(path string, loc *time.Location, from, to time.Time) ([]holiday.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open holiday file: %w", err)
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ics", ".ical":
		return holiday.LoadICS(file, holiday.ICSOptions{Location: loc, From: from, To: to})
	case ".yaml", ".yml":
		return holiday.LoadYAML(file, loc)
	default:
		return nil, fmt.Errorf("unsupported holiday file extension %q (supported: .ics, .yaml)", ext)
	}
}
