package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gameguyr/tempest/internal/config"
	"github.com/gameguyr/tempest/internal/db"
	"github.com/gameguyr/tempest/internal/logging"
	"github.com/gameguyr/tempest/internal/migrate"
	alertsrepo "github.com/gameguyr/tempest/internal/modules/alerts/repository"
	"github.com/gameguyr/tempest/internal/modules/alerts/seed"
	"github.com/gameguyr/tempest/internal/modules/alerts/service"
	weatherrepo "github.com/gameguyr/tempest/internal/modules/weather/repository"
	"github.com/gameguyr/tempest/internal/modules/weather/types"
	"github.com/gameguyr/tempest/internal/mqtt"
)

const usage = `usage: %s <command>
  migrate             apply pending schema migrations
  pending             list migrations not applied yet
  seed-alerts <file>  create alerts from a YAML file, skipping existing names
  publish <json>      publish one telemetry message to the configured broker
`

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, version, "tempest-tools")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "migrate", "pending":
	case "seed-alerts":
		if len(args) != 2 {
			return fmt.Errorf("expected exactly one file argument")
		}
	case "publish":
		if len(args) != 2 {
			return fmt.Errorf("expected exactly one JSON telemetry argument")
		}
		return publish(ctx, cfg, logger, args[1])
	default:
		return fmt.Errorf("unknown command")
	}

	conn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			logger.Error("db close", "err", closeErr)
		}
	}()

	switch args[0] {
	case "migrate":
		applied, err := migrate.Run(ctx, conn, logger)
		if err != nil {
			return err
		}
		fmt.Printf("%d migration(s) applied\n", len(applied))

	case "pending":
		pending, err := migrate.Pending(ctx, conn)
		if err != nil {
			return err
		}
		for _, m := range pending {
			fmt.Printf("%s_%s\n", m.Version, m.Name)
		}

	case "seed-alerts":
		f, err := seed.Load(args[1])
		if err != nil {
			return err
		}
		if _, err := migrate.Run(ctx, conn, logger); err != nil {
			return err
		}
		svc := service.NewService(
			alertsrepo.NewAlertRepository(conn),
			alertsrepo.NewHistoryRepository(conn),
			weatherrepo.NewRepository(conn),
			logger,
		)
		res, err := seed.Apply(ctx, svc, f, logger)
		if err != nil {
			return err
		}
		fmt.Printf("%d alert(s) created, %d skipped\n", res.Created, res.Skipped)
	}
	return nil
}

// publish needs only the broker, not the database.
func publish(ctx context.Context, cfg config.Config, logger *slog.Logger, payload string) error {
	var telemetry types.Telemetry
	if err := json.Unmarshal([]byte(payload), &telemetry); err != nil {
		return fmt.Errorf("parse telemetry: %w", err)
	}

	p := mqtt.NewPublisher(cfg, logger)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Connect(connectCtx); err != nil {
		return err
	}
	defer p.Disconnect()

	if err := p.Publish(connectCtx, telemetry); err != nil {
		return err
	}
	fmt.Printf("published to %s\n", mqtt.TopicFor(cfg.MQTTTopic, telemetry.StationID))
	return nil
}
