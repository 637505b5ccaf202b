package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/planflow/pkg/cmd"
	"github.com/dukex/planflow/pkg/eventbus"
	"github.com/dukex/planflow/pkg/log"
	"github.com/dukex/planflow/pkg/scheduler"
	"github.com/dukex/planflow/pkg/web"
	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const defaultPort = 9091

func NewServeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Relay progress events to a message bus (gochannel, kafka://broker:9092); empty disables the relay",
			Sources: cli.EnvVars("EVENT_BUS"),
		},
		&cli.DurationFlag{
			Name:    "draft-ttl",
			Usage:   "Cancel draft plans not approved within this duration (0 disables)",
			Value:   24 * time.Hour,
			Sources: cli.EnvVars("DRAFT_TTL"),
		},
		&cli.StringFlag{
			Name:    "draft-sweep",
			Usage:   "Cron schedule of the draft expiry sweep",
			Value:   "@every 5m",
			Sources: cli.EnvVars("DRAFT_SWEEP"),
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Usage:   "How long to wait for running plans on shutdown",
			Value:   30 * time.Second,
			Sources: cli.EnvVars("SHUTDOWN_TIMEOUT"),
		},
	}

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the plan API server",
		Flags:   append(flags, engineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("serve")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing Planflow API")

			eng, err := newEngine(ctx, command, logger)
			if err != nil {
				return err
			}

			defer eng.Close(context.WithoutCancel(ctx))

			var relay *eventbus.Relay

			if busProvider := command.String("event-bus"); busProvider != "" {
				publisher, subscriber, err := cmd.NewMessageBus(busProvider, command.String("service-name"), logger)
				if err != nil {
					return err
				}

				defer func() {
					err := publisher.Close()
					if err != nil {
						logger.Error("Failed to close event bus", "error", err)
					}

					err = subscriber.Close()
					if err != nil {
						logger.Error("Failed to close event bus subscriber", "error", err)
					}
				}()

				relay = eventbus.NewRelay(logger, eng.broadcaster, publisher)
			}

			var expiry *scheduler.DraftExpiry

			if ttl := command.Duration("draft-ttl"); ttl > 0 {
				expiry, err = scheduler.NewDraftExpiry(eng.plans, logger, ttl, command.String("draft-sweep"))
				if err != nil {
					return fmt.Errorf("draft expiry: %w", err)
				}
			}

			handlers := web.NewAPIHandlers(eng.plans, eng.broadcaster, eng.validate, eng.registry)
			app := NewAPI(logger, handlers).App()

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return app.Listen(":" + strconv.Itoa(command.Int("port")))
			})

			g.Go(func() error {
				<-gctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), command.Duration("shutdown-timeout"))
				defer cancel()

				logger.Info("Shutting down", "running_plans", eng.executor.Running())

				err := eng.executor.Drain(shutdownCtx)
				if err != nil {
					logger.Warn("Plans still running at shutdown", "running_plans", eng.executor.Running(), "error", err)
				}

				return app.ShutdownWithContext(shutdownCtx)
			})

			if relay != nil {
				g.Go(func() error {
					return relay.Run(gctx)
				})
			}

			if expiry != nil {
				g.Go(func() error {
					return expiry.Run(gctx)
				})
			}

			err = g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			logger.Info("Planflow API stopped")

			return nil
		},
	}
}
