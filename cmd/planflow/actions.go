package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dukex/planflow/pkg/cmd"
	"github.com/dukex/planflow/pkg/log"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

func NewActionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "actions",
		Aliases: []string{"a"},
		Usage:   "List the actions of the catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "actions-file",
				Usage:   "YAML action catalog (built-in catalog when empty)",
				Sources: cli.EnvVars("ACTIONS_FILE"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the catalog as JSON",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			reg, err := cmd.NewRegistry(log.WithModule("actions"), command.String("actions-file"), validator.New())
			if err != nil {
				return err
			}

			out := command.Root().Writer

			if command.Bool("json") {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")

				return encoder.Encode(reg.Actions())
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCRITICAL\tTIMEOUT\tESTIMATE\tDESCRIPTION")

			for _, action := range reg.Actions() {
				timeout := "-"
				if action.Timeout > 0 {
					timeout = action.Timeout.String()
				}

				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n",
					action.ID, action.Critical, timeout, action.EstimatedDuration, action.Description)
			}

			return tw.Flush()
		},
	}
}
