package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chargecal/controller"
	"chargecal/internal/timeutil"
	"chargecal/web"
)

var (
	servePort      int
	serveOrigins   []string
	serveFromMonth string
	serveToMonth   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the calendar JSON API",
	Long: `Start a local HTTP server exposing materialized events, day totals, validation,
and confirmed mutations under /api/calendar.

With --backend local the persistence routes of the SQLite database are mounted
as well (/api/time-charges, /api/leaves, /api/holidays), so another chargecal
instance can use this server as its remote API.

--from/--to preload the event cache for a month range before accepting requests.`,
	Example: `
  # Serve on top of the remote API
  chargecal serve

  # Serve the local database on a custom port and allow a browser origin
  chargecal serve --backend local --port 9090 --allow-origin http://localhost:5173

  # Warm the cache for the first quarter
  chargecal serve --from 2024-01 --to 2024-03
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		periods, err := parseServePeriods(serveFromMonth, serveToMonth)
		if err != nil {
			return err
		}

		application, err := openApp(backendFlag, nil)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		preloadPeriods(ctx, application.ctrl, periods, application.logger)

		addr := fmt.Sprintf(":%d", servePort)
		server := &http.Server{
			Addr: addr,
			Handler: web.NewServer(application.ctrl, web.Options{
				AllowedOrigins: serveOrigins,
				Logger:         &application.logger,
				Store:          application.store,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		application.logger.Info().Str("addr", addr).Str("backend", backendFlag).Msg("listening")
		fmt.Printf("Listening on http://localhost:%d\n", servePort)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			err := <-errCh
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP port for the calendar API")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "CORS origin allowed to call the API (repeatable, default *)")
	serveCmd.Flags().StringVar(&serveFromMonth, "from", "", "First month to preload, format YYYY-MM")
	serveCmd.Flags().StringVar(&serveToMonth, "to", "", "Last month to preload, format YYYY-MM (defaults to --from)")
}

// parseServePeriods expands the preload range. No flags means nothing is
// preloaded.
func parseServePeriods(fromValue, toValue string) ([]timeutil.Period, error) {
	fromValue = strings.TrimSpace(fromValue)
	toValue = strings.TrimSpace(toValue)
	if fromValue == "" && toValue == "" {
		return nil, nil
	}
	if fromValue == "" {
		fromValue = toValue
	}
	if toValue == "" {
		toValue = fromValue
	}

	from, err := timeutil.ParsePeriod(fromValue)
	if err != nil {
		return nil, fmt.Errorf("invalid --from value: %w", err)
	}
	to, err := timeutil.ParsePeriod(toValue)
	if err != nil {
		return nil, fmt.Errorf("invalid --to value: %w", err)
	}
	if periodAfter(from, to) {
		return nil, fmt.Errorf("invalid range: --from must be <= --to")
	}

	out := make([]timeutil.Period, 0, 12)
	for current := from; !periodAfter(current, to); current = current.Next() {
		out = append(out, current)
	}
	return out, nil
}

func periodAfter(a, b timeutil.Period) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	return a.Month > b.Month
}

// preloadPeriods warms the cache. Failures are logged and leave the period to
// be loaded on first request.
func preloadPeriods(ctx context.Context, ctrl *controller.Controller, periods []timeutil.Period, logger zerolog.Logger) {
	for _, period := range periods {
		events, err := ctrl.Events(ctx, period)
		if err != nil {
			logger.Warn().Err(err).Str("period", period.Key()).Msg("preload failed")
			continue
		}
		logger.Debug().Str("period", period.Key()).Int("events", len(events)).Msg("preloaded")
	}
}
