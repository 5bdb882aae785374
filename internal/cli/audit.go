package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var errFindings = errors.New("audit found inconsistencies")

func newAuditCommand(opts *options) *cobra.Command {
	var failOnFindings bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report tasks without assignees and dangling assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.audit.Scan(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.audit.Summary(report))
			if failOnFindings && !report.Clean() {
				return errFindings
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "exit with an error when the report is not clean")
	return cmd
}
