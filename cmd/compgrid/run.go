package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"compgrid/internal/model"
	"compgrid/internal/report"
)

func newRunCmd(cfgPath *string) *cobra.Command {
	var (
		date  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "run <target> <definition>",
		Short: "Build one grid and deliver it to stdout, telegram, slack or email",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, path := args[0], args[1]

			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.ValidateTarget(target); err != nil {
				return err
			}

			anchor, err := runAnchor(date, a.cfg.Location)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := a.runner.Run(ctx, report.Request{
				Definition: path,
				Target:     target,
				Anchor:     anchor,
				Force:      force,
			})
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintf(os.Stderr, "%s already delivered to %s for %s, use --force to resend\n", path, target, anchor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "anchor date YYYY-MM-DD (default yesterday)")
	cmd.Flags().BoolVar(&force, "force", false, "deliver even if this date was already delivered")
	return cmd
}

func runAnchor(date string, location func() (*time.Location, error)) (model.Date, error) {
	if date != "" {
		return model.ParseDate(date)
	}
	loc, err := location()
	if err != nil {
		return model.Date{}, err
	}
	return model.Yesterday(time.Now(), loc), nil
}
