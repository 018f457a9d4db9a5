package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/app"
	"github.com/Freeeeeet/training_scheduler/internal/config"
	"github.com/Freeeeeet/training_scheduler/internal/csvio"
	"github.com/Freeeeeet/training_scheduler/internal/lock"
	"github.com/Freeeeeet/training_scheduler/internal/notify"
	"github.com/Freeeeeet/training_scheduler/internal/repository"
	"github.com/Freeeeeet/training_scheduler/internal/sequencer"
	"github.com/Freeeeeet/training_scheduler/internal/service"
)

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, command string, args []string, cfg *config.Config, logger *zap.Logger) error {
	switch command {
	case "plan":
		return runPlan(args, cfg, logger)
	case "migrate":
		return runMigrate(ctx, args, cfg, logger)
	case "generate", "assign", "reset", "retry", "export", "validate", "serve-jobs":
		return runWithService(ctx, command, args, cfg, logger)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func loadPolicy(cfg *config.Config) (config.Policy, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return policy, fmt.Errorf("load policy: %w", err)
	}
	return policy, nil
}

func newPlanner(policy config.Policy, logger *zap.Logger) *service.Planner {
	return service.NewPlanner(sequencer.Policy{CategoryRunLimit: policy.CategoryRunLimit}, logger)
}

func runPlan(args []string, cfg *config.Config, logger *zap.Logger) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	dataDir := fs.String("data", "resource/data", "directory with the reference CSV files")
	courseID := fs.Int64("course", 0, "course id from courses.csv")
	outDir := fs.String("out", cfg.ScheduleDir, "directory of the week bucketed schedule")
	xlsxPath := fs.String("xlsx", "", "also write the timetable workbook to this path")
	reset := fs.Bool("reset", false, "remove the stored weeks of the course instead of planning")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *courseID == 0 {
		return fmt.Errorf("%w: -course is required", errUsage)
	}

	policy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	ref, err := csvio.LoadReference(*dataDir)
	if err != nil {
		return err
	}

	store := csvio.NewStore(*outDir, policy.WeekDays, logger)
	planner := newPlanner(policy, logger)
	if *reset {
		removed, err := planner.ResetFiles(ref, *courseID, store)
		if err != nil {
			return err
		}
		fmt.Printf("%d week files removed\n", removed)
		return nil
	}

	var xlsx io.Writer
	if *xlsxPath != "" {
		f, err := os.Create(*xlsxPath)
		if err != nil {
			return fmt.Errorf("create workbook: %w", err)
		}
		defer f.Close()
		xlsx = f
	}

	res, err := planner.PlanFiles(ref, *courseID, store, xlsx)
	if err != nil {
		return err
	}

	fmt.Println(res.Report.Summary())
	for _, o := range res.Plan.Failed {
		fmt.Printf("team %d not sequenced: %v\n", o.TeamID, o.Err)
	}
	for _, sk := range res.Report.Skipped {
		fmt.Println("skipped:", sk.Message())
	}
	return res.Plan.Err()
}

func runMigrate(ctx context.Context, args []string, cfg *config.Config, logger *zap.Logger) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	down := fs.Bool("down", false, "roll back the latest migration instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if *down {
		return migrator.Down(ctx)
	}
	return migrator.Up(ctx)
}

func runWithService(ctx context.Context, command string, args []string, cfg *config.Config, logger *zap.Logger) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	courseID := fs.Int64("course", 0, "course id")
	out := fs.String("out", "timetable.xlsx", "workbook path for export")
	if err := fs.Parse(args); err != nil {
		return err
	}
	needsCourse := command != "retry" && command != "serve-jobs"
	if needsCourse && *courseID == 0 {
		return fmt.Errorf("%w: -course is required", errUsage)
	}

	policy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	locker, closeLocker, err := newLocker(ctx, cfg, policy, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	svc := service.NewScheduleService(newStores(pool, logger), newPlanner(policy, logger), locker, notifier, logger)

	switch command {
	case "generate":
		res, err := svc.Generate(ctx, *courseID)
		if res != nil {
			fmt.Printf("run %s: %d sessions created, %d reused, %d teams failed\n",
				res.RunID, res.Inserted, res.Reused, len(res.Failed))
		}
		return err

	case "assign":
		report, err := svc.Assign(ctx, *courseID)
		if err != nil {
			return err
		}
		fmt.Println(report.Summary())
		for _, sk := range report.Skipped {
			fmt.Println("skipped:", sk.Message())
		}
		return nil

	case "reset":
		deleted, err := svc.Reset(ctx, *courseID)
		if err != nil {
			return err
		}
		fmt.Printf("%d sessions deleted, course back to Draft\n", deleted)
		return nil

	case "retry":
		ran, err := svc.RetryUnresourced(ctx)
		fmt.Printf("%d courses retried\n", ran)
		return err

	case "export":
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create workbook: %w", err)
		}
		if err := svc.Export(ctx, *courseID, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close workbook: %w", err)
		}
		logger.Info("Timetable exported", zap.String("path", *out))
		return nil

	case "validate":
		violations, err := svc.Validate(ctx, *courseID)
		if err != nil {
			return err
		}
		for _, v := range violations {
			fmt.Println(v.String())
		}
		if len(violations) > 0 {
			return fmt.Errorf("%d violations found", len(violations))
		}
		fmt.Println("no violations")
		return nil

	case "serve-jobs":
		jobs := app.NewJobs(svc, cfg.RetryInterval, logger)
		jobs.Start(ctx)
		<-ctx.Done()
		jobs.Stop()
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := cfg.RequireDB(); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func newStores(pool *pgxpool.Pool, logger *zap.Logger) service.Stores {
	return service.Stores{
		Subjects:  repository.NewSubjectRepository(pool, logger),
		Lecturers: repository.NewLecturerRepository(pool, logger),
		Locations: repository.NewLocationRepository(pool, logger),
		Holidays:  repository.NewHolidayRepository(pool, logger),
		Teams:     repository.NewTeamRepository(pool, logger),
		Curricula: repository.NewCurriculumRepository(pool, logger),
		Courses:   repository.NewCourseRepository(pool, logger),
		Sessions:  repository.NewSessionRepository(pool, logger),
		Runs:      repository.NewRunRepository(pool, logger),
	}
}

// newLocker returns the Redis lock when REDIS_ADDR is set and the in-process
// lock otherwise.
func newLocker(ctx context.Context, cfg *config.Config, policy config.Policy, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis run lock", zap.String("addr", cfg.RedisAddr))
	return lock.NewRedis(client, policy.LockTTL, logger), closeRedis(client, logger), nil
}

func closeRedis(client *redis.Client, logger *zap.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}

func newNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, error) {
	if !cfg.NotifyEnabled() {
		return notify.Nop{}, nil
	}
	n, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChat, logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}
