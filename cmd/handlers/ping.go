package handlers

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// NewPingCmd creates the ping command
func NewPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check database and model API connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, _, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			failed := false

			if err := c.Store.Ping(ctx); err != nil {
				fmt.Fprintf(out, "database:  error (%v)\n", err)
				failed = true
			} else {
				fmt.Fprintf(out, "database:  ok (%s)\n", c.Store.Dialect())
			}

			report := c.Gateway.Ping(ctx)
			fmt.Fprintf(out, "chat:      %s\n", okOrError(report.Chat))
			fmt.Fprintf(out, "embedding: %s\n", okOrError(report.Embedding))
			for _, e := range report.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}

			if failed || !report.Chat || !report.Embedding {
				return errors.New("connectivity check failed")
			}
			return nil
		},
	}
}

func okOrError(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
