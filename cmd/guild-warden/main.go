package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"guild-warden/internal/bot"
	"guild-warden/internal/config"
	"guild-warden/internal/crash"
	"guild-warden/internal/logger"
	"guild-warden/internal/service"
	"guild-warden/internal/storage"
)

const maintenanceInterval = 30 * time.Second

func main() {
	// record the stack of any panic on the main goroutine
	defer crash.RecoverWithStackAndExit("main")

	app := cli.App{
		Name:  "guild-warden",
		Usage: "moderation, auto-moderation and leveling bot for discord and telegram",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to configuration file",
				Value:   "configs/config.yaml",
				EnvVars: []string{"WARDEN_CONFIG"},
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "connect the bots and serve until interrupted",
			Action: runBot,
		},
		{
			Name:   "migrate",
			Usage:  "create or update the database tables",
			Action: runMigrate,
		},
	}
	app.DefaultCommand = "run"
	app.RunAndExitOnError()
}

func setup(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Setup(cfg); err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, nil
}

func runMigrate(cctx *cli.Context) error {
	cfg, err := setup(cctx)
	if err != nil {
		return err
	}
	if err := storage.Initialize(cfg); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := storage.Migrate(storage.GetDB()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migration completed successfully")
	return nil
}

func runBot(cctx *cli.Context) error {
	cfg, err := setup(cctx)
	if err != nil {
		return err
	}

	if err := storage.Initialize(cfg); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()

	services, err := service.Initialize(ctx, cfg, storage.GetDB())
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	logger.Infof("Database connection established and repositories initialized")

	services.StartMaintenance(ctx, maintenanceInterval)

	botService, err := bot.Initialize(ctx, cfg, services)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	if err := botService.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	botService.Stop(shutdownCtx)

	// waiting for handlers may have used up shutdownCtx
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()

	logger.Infof("Clearing notices tracked in memory...")
	services.Close(closeCtx)

	log.Println("Server gracefully stopped")
	return nil
}
