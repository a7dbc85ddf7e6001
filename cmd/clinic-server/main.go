package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pedcare/clinic/internal/config"
	"github.com/pedcare/clinic/internal/domain/dashboard"
	"github.com/pedcare/clinic/internal/domain/dosing"
	"github.com/pedcare/clinic/internal/domain/growth"
	"github.com/pedcare/clinic/internal/domain/immunization"
	"github.com/pedcare/clinic/internal/domain/patient"
	"github.com/pedcare/clinic/internal/domain/scheduling"
	"github.com/pedcare/clinic/internal/domain/staff"
	"github.com/pedcare/clinic/internal/platform/auth"
	"github.com/pedcare/clinic/internal/platform/cache"
	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/internal/platform/middleware"
	"github.com/pedcare/clinic/pkg/apperror"
)

var migrationsDir string

func main() {
	root := &cobra.Command{
		Use:           "clinic-server",
		Short:         "Pediatric clinic management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&migrationsDir, "migrations", "migrations", "path to SQL migrations")

	root.AddCommand(serveCmd(), migrateCmd(), tenantCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) cache.Store {
	if cfg.RedisURL != "" {
		store, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err == nil {
			log.Info().Msg("cache: redis")
			return store
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to in-memory cache")
	}
	mem := cache.NewMemory()
	mem.StartCleanup(ctx, time.Minute)
	log.Info().Msg("cache: in-memory")
	return mem
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			store := openCache(ctx, cfg, log)
			versions := cache.NewVersions(store, log)
			ttl := cfg.CacheTTL()

			// Repositories.
			patientRepo := patient.NewRepoPG(pool)
			staffRepo := staff.NewRepoPG(pool)
			apptRepo := scheduling.NewRepoPG(pool)
			standardRepo := growth.NewStandardRepoPG(pool)
			recordRepo := growth.NewRecordRepoPG(pool)
			vaccScheduleRepo := immunization.NewScheduleRepoPG(pool)
			vaccRecordRepo := immunization.NewRecordRepoPG(pool)
			doseRuleRepo := dosing.NewRepoPG(pool)

			// Services.
			patientSvc := patient.NewService(patientRepo, versions, ttl, log)
			directory := patient.NewDirectory(patientSvc)
			staffSvc := staff.NewService(staffRepo, versions, log)

			dobOf := func(ctx context.Context, id uuid.UUID) (time.Time, error) {
				p, err := directory.PatientInfo(ctx, id)
				if err != nil {
					return time.Time{}, err
				}
				return p.DateOfBirth, nil
			}
			checkPatient := func(ctx context.Context, id uuid.UUID) error {
				_, err := directory.PatientInfo(ctx, id)
				return err
			}

			resolver := growth.NewResolver(standardRepo)
			growthSvc := growth.NewService(recordRepo, resolver, directory, versions, pool, ttl, log)
			schedulingSvc := scheduling.NewService(apptRepo, staffSvc, checkPatient, versions, pool, log)
			immunizationSvc := immunization.NewService(vaccScheduleRepo, vaccRecordRepo,
				immunization.DOBLookup(dobOf), versions, pool, ttl, log)
			dosingSvc := dosing.NewService(doseRuleRepo, growthSvc, dosing.DOBLookup(dobOf), log)
			dashboardSvc := dashboard.NewService(patientRepo, apptRepo, immunizationSvc, growthSvc,
				versions, ttl, log)

			e := echo.New()
			e.HideBanner = true
			e.HTTPErrorHandler = apperror.EchoErrorHandler(log)

			e.Use(middleware.Recovery(log))
			e.Use(middleware.RequestID())
			e.Use(middleware.Logger(log))
			e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
				AllowOrigins: cfg.CORSOrigins,
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType,
					echo.HeaderAuthorization, "X-Clinic-ID", "X-Request-ID"},
			}))

			e.GET("/health", db.HealthHandler(pool, cfg.HealthPingTimeout()))

			api := e.Group("/api/v1")
			if cfg.JWTSecret != "" {
				api.Use(auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(cfg.JWTSecret)}))
			} else {
				log.Warn().Msg("no JWT secret configured, using development auth")
				api.Use(auth.DevAuthMiddleware())
			}
			api.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				BurstSize:         cfg.RateLimitBurst,
			}))
			api.Use(db.ClinicMiddleware(pool, cfg.DefaultClinic))

			patient.NewHandler(patientSvc).RegisterRoutes(api)
			staff.NewHandler(staffSvc).RegisterRoutes(api)
			scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)
			growth.NewHandler(growthSvc).RegisterRoutes(api)
			immunization.NewHandler(immunizationSvc).RegisterRoutes(api)
			dosing.NewHandler(dosingSvc).RegisterRoutes(api)
			dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)

			go func() {
				log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
				if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server stopped")
				}
			}()

			<-ctx.Done()
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	var clinic string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.PersistentFlags().StringVar(&clinic, "clinic", "default", "clinic schema to migrate")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			m := db.NewMigrator(pool, migrationsDir)
			applied, err := m.Up(ctx, "clinic_"+clinic)
			if err != nil {
				return err
			}
			log.Info().Int("applied", applied).Str("clinic", clinic).Msg("migrations complete")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			m := db.NewMigrator(pool, migrationsDir)
			statuses, err := m.Status(ctx, "clinic_"+clinic)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%4d  %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}

	cmd.AddCommand(up, status)
	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinic tenants",
	}

	create := &cobra.Command{
		Use:   "create <clinic-id>",
		Short: "Create a clinic schema and run its migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.CreateClinicSchema(ctx, pool, args[0], migrationsDir); err != nil {
				return err
			}
			log.Info().Str("clinic", args[0]).Msg("clinic created")
			return nil
		},
	}

	cmd.AddCommand(create)
	return cmd
}

func seedCmd() *cobra.Command {
	var clinic, standardsFile string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed reference data (growth standards, vaccine schedule)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("acquire connection: %w", err)
			}
			defer conn.Release()
			schema := "clinic_" + clinic
			if _, err := conn.Exec(ctx, "SET search_path TO "+schema+", shared, public"); err != nil {
				return fmt.Errorf("set search path: %w", err)
			}
			ctx = db.WithConn(ctx, conn)

			if standardsFile != "" {
				rows, err := loadStandardsCSV(standardsFile)
				if err != nil {
					return err
				}
				if err := growth.NewStandardRepoPG(pool).BulkInsert(ctx, rows); err != nil {
					return err
				}
				log.Info().Int("rows", len(rows)).Msg("growth standards seeded")
			}

			n, err := immunization.NewScheduleRepoPG(pool).BulkInsert(ctx, defaultVaccineSchedule())
			if err != nil {
				return err
			}
			log.Info().Int("rows", n).Msg("vaccine schedule seeded")
			return nil
		},
	}

	cmd.Flags().StringVar(&clinic, "clinic", "default", "clinic schema to seed")
	cmd.Flags().StringVar(&standardsFile, "standards", "", "CSV of WHO LMS rows (gender,chart_type,age_days,l,m,s)")
	return cmd
}

// loadStandardsCSV parses WHO LMS reference rows from a headerless CSV with
// columns gender,chart_type,age_days,l,m,s.
func loadStandardsCSV(path string) ([]*growth.GrowthStandard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([]*growth.GrowthStandard, 0, len(records))
	for i, rec := range records {
		if len(rec) != 6 {
			return nil, fmt.Errorf("line %d: expected 6 columns, got %d", i+1, len(rec))
		}
		gender := growth.Gender(rec[0])
		chart := growth.ChartType(rec[1])
		if !gender.Valid() || !chart.Valid() {
			return nil, fmt.Errorf("line %d: invalid gender or chart type", i+1)
		}
		ageDays, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: age_days: %w", i+1, err)
		}
		l, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: l: %w", i+1, err)
		}
		m, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: m: %w", i+1, err)
		}
		s, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: s: %w", i+1, err)
		}
		rows = append(rows, &growth.GrowthStandard{
			Gender:    gender,
			ChartType: chart,
			AgeDays:   ageDays,
			L:         l,
			M:         m,
			S:         s,
		})
	}
	return rows, nil
}

// defaultVaccineSchedule is the routine pediatric series (CVX codes). Due and
// overdue ages are in days.
func defaultVaccineSchedule() []*immunization.ScheduleEntry {
	entry := func(code, name string, dose, dueDays, overdueDays int) *immunization.ScheduleEntry {
		return &immunization.ScheduleEntry{
			VaccineCode:    code,
			VaccineName:    name,
			DoseNumber:     dose,
			DueAgeDays:     dueDays,
			OverdueAgeDays: overdueDays,
		}
	}
	return []*immunization.ScheduleEntry{
		entry("08", "Hepatitis B", 1, 0, 30),
		entry("08", "Hepatitis B", 2, 30, 90),
		entry("08", "Hepatitis B", 3, 180, 550),
		entry("20", "DTaP", 1, 60, 120),
		entry("20", "DTaP", 2, 120, 180),
		entry("20", "DTaP", 3, 180, 240),
		entry("20", "DTaP", 4, 450, 570),
		entry("10", "IPV", 1, 60, 120),
		entry("10", "IPV", 2, 120, 180),
		entry("10", "IPV", 3, 180, 550),
		entry("133", "PCV13", 1, 60, 120),
		entry("133", "PCV13", 2, 120, 180),
		entry("133", "PCV13", 3, 180, 240),
		entry("133", "PCV13", 4, 365, 455),
		entry("116", "Rotavirus", 1, 60, 104),
		entry("116", "Rotavirus", 2, 120, 224),
		entry("48", "Hib", 1, 60, 120),
		entry("48", "Hib", 2, 120, 180),
		entry("48", "Hib", 3, 365, 455),
		entry("03", "MMR", 1, 365, 480),
		entry("03", "MMR", 2, 1460, 1825),
		entry("21", "Varicella", 1, 365, 480),
		entry("21", "Varicella", 2, 1460, 1825),
		entry("83", "Hepatitis A", 1, 365, 730),
		entry("83", "Hepatitis A", 2, 545, 910),
	}
}
