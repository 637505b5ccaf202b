package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/planflow/pkg/cmd"
	"github.com/dukex/planflow/pkg/eventbus"
	"github.com/dukex/planflow/pkg/log"
	"github.com/dukex/planflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print progress events relayed to the message bus by a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Message bus to read from (kafka://broker:9092)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "service-name",
				Usage:   "Consumer group suffix",
				Value:   "planflow-watch",
				Sources: cli.EnvVars("SERVICE_NAME"),
			},
			&cli.StringFlag{
				Name:  "plan",
				Usage: "Only print events of this plan",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := log.WithModule("watch")

			publisher, subscriber, err := cmd.NewMessageBus(command.String("event-bus"), command.String("service-name"), logger)
			if err != nil {
				return err
			}

			defer func() {
				_ = publisher.Close()
				_ = subscriber.Close()
			}()

			out := command.Root().Writer
			planID := command.String("plan")

			return eventbus.Consume(ctx, logger, subscriber, func(_ context.Context, event models.ProgressEvent) error {
				if planID != "" && event.PlanID != planID {
					return nil
				}

				fmt.Fprintf(out, "%s ", event.PlanID)
				printEvent(out, event)

				return nil
			})
		},
	}
}
