package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/patientdesk/internal/config"
	"github.com/ehr/patientdesk/internal/domain/patient"
	"github.com/ehr/patientdesk/internal/platform/db"
	"github.com/ehr/patientdesk/internal/platform/middleware"
	"github.com/ehr/patientdesk/internal/platform/notification"
	"github.com/ehr/patientdesk/internal/platform/sandbox"
	"github.com/ehr/patientdesk/internal/platform/telemetry"
	"github.com/ehr/patientdesk/internal/platform/upstream"
	"github.com/ehr/patientdesk/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "patient-desk",
		Short: "Patient record desk",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(sandboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the patient desk API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch the records once and print one page",
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			sortBy, _ := cmd.Flags().GetString("sort")
			page, _ := cmd.Flags().GetInt("page")

			key, err := patient.ParseSortKey(sortBy)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg, os.Stderr)
			ctx := cmd.Context()
			source, pool, err := newSource(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			notes := notification.NewSlot(cfg.NotificationTTL)
			ctl := patient.NewController(patient.NewStore(), source, notes, logger)
			defer ctl.Close()

			if err := ctl.Load(ctx); err != nil {
				return fmt.Errorf("%s: %w", patient.MsgFetchFailed, err)
			}
			ctl.SetSearch(search)
			ctl.SetSort(key)
			ctl.SetPage(page)

			printView(cmd.OutOrStdout(), ctl.View())
			return nil
		},
	}
	cmd.Flags().String("search", "", "Filter by name or id")
	cmd.Flags().String("sort", string(patient.SortByID), "Sort key: id, name-asc, name-desc, date-asc, date-desc")
	cmd.Flags().Int("page", 1, "Page to print")
	return cmd
}

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve synthetic patient records as a local upstream endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetInt64("seed")
			if count < 0 {
				return fmt.Errorf("--count must be zero or more, got %d", count)
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			cfg := sandbox.DefaultSeedConfig()
			cfg.PatientCount = count
			cfg.Seed = seed

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.Use(middleware.Recovery(logger))
			e.Use(middleware.Logger(logger))
			sandbox.NewSeedHandler(cfg).RegisterRoutes(e.Group(""))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				e.Shutdown(shutdownCtx)
			}()

			logger.Info().Str("addr", addr).Int("count", count).Msg("sandbox upstream at /users")
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", ":9000", "Listen address")
	cmd.Flags().Int("count", 40, "Number of synthetic patients")
	cmd.Flags().Int64("seed", 1, "Random seed; 0 picks a time-based seed")
	return cmd
}

// newLogger writes console output in development and JSON elsewhere.
// Production drops debug lines.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsProduction() {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

// newSource picks the record source from SOURCE_URL. The pool is nil unless
// the source is Postgres; the caller closes it.
func newSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (patient.Source, *pgxpool.Pool, error) {
	if cfg.SourceIsPostgres() {
		pool, err := db.NewPool(ctx, cfg.SourceURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("database pool configured")
		return patient.NewPGSource(pool), pool, nil
	}
	client := upstream.NewClient(cfg.FetchTimeout, logger)
	return patient.NewHTTPSource(client, cfg.SourceURL), nil, nil
}

func printView(w io.Writer, v patient.View) {
	if v.Empty {
		fmt.Fprintln(w, "No patients found")
		fmt.Fprintln(w, "Try adjusting your search or add a new patient")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tWEBSITE")
	for _, card := range v.Cards {
		p := card.Patient
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, card.CreatedLabel, p.Website)
	}
	tw.Flush()

	fmt.Fprintln(w, v.Summary())
	if v.ShowPagination {
		fmt.Fprintf(w, "Page %d of %d\n", v.Page, v.TotalPages)
	}
}

// publishChange forwards committed changes to live viewers. Record changes
// carry the record and also go to the record's own topic.
func publishChange(ctx context.Context, pub websocket.EventPublisher, logger zerolog.Logger) func(patient.Change) {
	return func(ch patient.Change) {
		ev := websocket.Event{
			Type:      string(ch.Type),
			Topic:     websocket.TopicPatients,
			PatientID: ch.PatientID,
			Timestamp: time.Now(),
		}
		if ch.PatientID != "" {
			data, err := json.Marshal(ch.Record)
			if err != nil {
				logger.Error().Err(err).Str("patient_id", ch.PatientID).Msg("encode change event")
				return
			}
			ev.Data = data
		}

		topics := []string{websocket.TopicPatients}
		if ch.PatientID != "" {
			topics = append(topics, websocket.PatientTopic(ch.PatientID))
		}
		for _, topic := range topics {
			ev.Topic = topic
			if err := pub.Publish(ctx, ev); err != nil {
				logger.Warn().Err(err).Str("topic", topic).Msg("publish change event")
			}
		}
	}
}

// auditMetrics counts audited patient data accesses.
func auditMetrics(p *telemetry.Provider) middleware.AuditRecorder {
	return middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		p.ObserveAccess(entry.Action, entry.StatusCode)
		return nil
	})
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, pool, err := newSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid record source")
	}
	if pool != nil {
		defer pool.Close()
	}

	metrics := telemetry.NewProvider("patient_desk")
	store := patient.NewStore()
	notes := notification.NewSlot(cfg.NotificationTTL)
	hub := websocket.NewHub(logger)
	notes.OnDismiss = func(n notification.Notification) {
		logger.Debug().Str("notification_id", n.ID).Msg("notification dismissed")
		hub.Broadcast(websocket.TopicNotifications, websocket.Event{
			Type:      "notification.dismissed",
			Topic:     websocket.TopicNotifications,
			Timestamp: time.Now(),
		})
	}
	ctl := patient.NewController(store, source, notes, logger,
		patient.WithObserver(metrics),
		patient.WithChangeListener(publishChange(ctx, hub, logger)),
	)
	defer ctl.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(metrics.MetricsMiddleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.Audit(logger, auditMetrics(metrics)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", metrics.PrometheusHandler())
	if pool != nil {
		e.GET("/health/db", db.PoolHealthHandler(pool))
	}

	apiV1 := e.Group("/api/v1", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	patient.NewHandler(ctl, store).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Initial load runs in the background; the view reports loading until
	// it finishes.
	ctl.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("postgres_source", cfg.SourceIsPostgres()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
