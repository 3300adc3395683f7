package cmd

import (
	"fmt"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/recurrence"
	"github.com/spf13/cobra"
)

func newProjectCmd() *cobra.Command {
	var (
		from, freq string
		count      int
	)
	c := &cobra.Command{
		Use:     "project",
		Short:   "List the next due dates of a cadence",
		Example: "  schedctl project --from 2024-01-31 --frequency monthly --count 4",
		RunE: func(cmd *cobra.Command, args []string) error {
			first, err := obligation.ParseDate(from)
			if err != nil {
				return err
			}
			f, err := obligation.ParseFrequency(freq)
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("count must be positive")
			}
			d := first
			for i := 0; i < count; i++ {
				fmt.Fprintln(cmd.OutOrStdout(), d)
				if d, err = recurrence.Next(d, f); err != nil {
					return err
				}
			}
			return nil
		},
	}
	c.Flags().StringVar(&from, "from", "", "first due date (YYYY-MM-DD)")
	c.Flags().StringVar(&freq, "frequency", "monthly", "daily|weekly|monthly|yearly")
	c.Flags().IntVarP(&count, "count", "n", 6, "number of dates to print")
	_ = c.MarkFlagRequired("from")
	return c
}
