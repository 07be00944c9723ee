package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/repcompanion/repcompanion/internal/config"
	"github.com/repcompanion/repcompanion/internal/domain/callnote"
	"github.com/repcompanion/repcompanion/internal/domain/catalog"
	"github.com/repcompanion/repcompanion/internal/domain/directory"
	"github.com/repcompanion/repcompanion/internal/domain/overview"
	"github.com/repcompanion/repcompanion/internal/domain/search"
	"github.com/repcompanion/repcompanion/internal/domain/workflow"
	"github.com/repcompanion/repcompanion/internal/platform/blobstore"
	"github.com/repcompanion/repcompanion/internal/platform/db"
	"github.com/repcompanion/repcompanion/internal/platform/kvstore"
	"github.com/repcompanion/repcompanion/internal/platform/middleware"
	"github.com/repcompanion/repcompanion/internal/seed"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "repcompanion-server",
		Short: "Rep Companion API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, newLogger(cfg))
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres storage backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Inspect the reference data set",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the seed data for dangling references and duplicates",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			data, err := loadSeed(file)
			if err != nil {
				return err
			}
			problems := data.Validate()
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), p.String())
			}
			if len(problems) > 0 {
				return fmt.Errorf("seed data has %d problem(s)", len(problems))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seed data OK: %d hospitals, %d doctors, %d operations, %d products, %d call notes.\n",
				len(data.Hospitals), len(data.Doctors), len(data.Operations), len(data.Products), len(data.CallNotes))
			return nil
		},
	}
	validate.Flags().String("file", "", "Path to a seed YAML file (defaults to SEED_FILE, then the embedded data set)")
	cmd.AddCommand(validate)

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return logger
}

// loadSeed reads file when set, then SEED_FILE, then the embedded data set.
func loadSeed(file string) (*seed.Data, error) {
	if file == "" {
		if cfg, err := config.Load(); err == nil {
			file = cfg.SeedFile
		}
	}
	if file != "" {
		return seed.LoadFile(file)
	}
	return seed.Load()
}

// backends holds the storage chosen by configuration.
type backends struct {
	kv    kvstore.Store
	blobs blobstore.BlobStore
	pool  *pgxpool.Pool
}

func (b *backends) Close() {
	if b.kv != nil {
		b.kv.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backends, error) {
	b := &backends{}
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		count, err := db.NewMigrator(pool).Up(ctx)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info().Int("applied", count).Msg("connected to database")
		b.kv = kvstore.NewPostgres(pool)
	case config.BackendRedis:
		r, err := kvstore.OpenRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to redis")
		b.kv = r
	default:
		logger.Warn().Msg("using in-memory storage; workspace data is lost on restart")
		b.kv = kvstore.NewMemory()
	}

	switch cfg.BlobBackend {
	case config.BackendMinIO:
		store, err := blobstore.NewMinIOBlobStore(ctx, blobstore.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		logger.Info().Str("bucket", cfg.MinIOBucket).Msg("connected to object storage")
		b.blobs = store
	default:
		b.blobs = blobstore.NewInMemoryBlobStore()
	}
	return b, nil
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	data, err := loadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	if problems := data.Validate(); len(problems) > 0 {
		for _, p := range problems {
			logger.Warn().Str("problem", p.String()).Msg("seed data problem")
		}
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	e := newServer(cfg, logger, data, b)
	addr := ":" + cfg.Port

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageBackend).Str("blobs", cfg.BlobBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newServer wires every service onto a fresh echo instance.
func newServer(cfg *config.Config, logger zerolog.Logger, data *seed.Data, b *backends) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := middleware.NewMetrics("repcompanion")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		ExemptPrefixes:    []string{"/health", "/metrics"},
	}
	if rateLimitCfg.BurstSize <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "If-None-Match", "X-Request-ID", kvstore.HeaderWorkspaceID},
	}))
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, "11M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.ETag("/api/v1"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"storage": cfg.StorageBackend,
		})
	})
	if b.pool != nil {
		e.GET("/health/db", db.HealthHandler(b.pool))
	}
	e.GET("/metrics", metrics.Handler())

	kv := kvstore.NewScoped(b.kv)

	dirSvc := directory.NewService(directory.NewMemoryDoctorRepo(data.Doctors), directory.NewMemoryHospitalRepo(data.Hospitals))
	catSvc := catalog.NewService(catalog.NewMemoryProductRepo(data.Products))
	wfSvc := workflow.NewService(
		workflow.NewMemoryTemplateRepo(data.Operations),
		workflow.NewStore(kv, logger),
		dirSvc, catSvc, b.blobs, logger,
	)
	noteSvc := callnote.NewService(kv, dirSvc, data.CallNotes, logger)
	searchSvc := search.NewService(dirSvc, catSvc, kv, data.RecentSearches, logger)
	overviewSvc := overview.NewService(dirSvc, catSvc, wfSvc, noteSvc)

	api := e.Group("/api/v1", kvstore.WorkspaceMiddleware(cfg.DefaultWorkspace))
	directory.NewHandler(dirSvc).RegisterRoutes(api)
	catalog.NewHandler(catSvc).RegisterRoutes(api)
	workflow.NewHandler(wfSvc).RegisterRoutes(api)
	callnote.NewHandler(noteSvc).RegisterRoutes(api)
	search.NewHandler(searchSvc).RegisterRoutes(api)
	overview.NewHandler(overviewSvc).RegisterRoutes(api)
	blobstore.NewHandler(b.blobs, logger).RegisterRoutes(api)

	return e
}
