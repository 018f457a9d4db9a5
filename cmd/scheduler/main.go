package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/app"
	"github.com/Freeeeeet/training_scheduler/internal/config"
)

const usage = `usage: scheduler <command> [flags]

commands:
  plan        generate and assign a course from CSV files, no database
              (-reset removes the stored weeks of the course)
  generate    lay out skeleton sessions for a course
  assign      assign lecturers and locations to a course
  reset       delete the sessions of a course and move it back to Draft
  retry       re-run assignment for courses with unresourced sessions
  export      write a course timetable workbook
  validate    check stored sessions against the booking rules
  migrate     apply database migrations
  serve-jobs  run the periodic retry job until interrupted
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	logger.Debug("Starting scheduler",
		zap.String("command", command),
		zap.String("environment", cfg.Environment))

	if err := run(ctx, command, os.Args[2:], cfg, logger); err != nil {
		logger.Error("Command failed", zap.String("command", command), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
