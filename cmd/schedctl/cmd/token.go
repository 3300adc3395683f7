package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/personalfinance/finance/backend/go-scheduler/internal/auth"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/config"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		sub, name string
		ttl       time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Print an HS256 bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = cfg.JWT.AccessTokenTTL
			}
			tok, err := auth.IssueToken(cfg.JWT.Secret, sub, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	c.Flags().StringVar(&sub, "sub", "", "subject (owner id) of the token")
	c.Flags().StringVar(&name, "name", "", "display name claim")
	c.Flags().DurationVar(&ttl, "ttl", 0, "lifetime (defaults to JWT_ACCESS_TOKEN_TTL)")
	_ = c.MarkFlagRequired("sub")
	return c
}
