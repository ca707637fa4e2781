package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/starwatch/internal/adapters/driven/auth"
	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/services"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator API token",
		Long: `Signs an operator token with STARWATCH_AUTH_JWT_SECRET without going
through the password exchange. Useful for scripts and first setup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			now := time.Now()
			token, err := auth.NewAdapter(cfg.Auth.JWTSecret).GenerateToken(&domain.TokenClaims{
				Subject:   services.OperatorSubject,
				IssuedAt:  now.Unix(),
				ExpiresAt: now.Add(ttl).Unix(),
			})
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			cmd.Println(token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default STARWATCH_AUTH_TOKEN_TTL)")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash for STARWATCH_AUTH_ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("password must not be empty")
			}
			hash, err := auth.NewAdapter("").HashPassword(args[0])
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			cmd.Println(hash)
			return nil
		},
	}
}
