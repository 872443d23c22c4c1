package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrmsprobe/wrmsprobe/internal/auth"
	"github.com/wrmsprobe/wrmsprobe/internal/report"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		operator string
		scopes   []string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the status API",
		Long: `Mint an HS256 operator token signed with auth.signing_key
($JWT_SIGNING_KEY). Tokens carry the read scope unless --scope is given.`,
		Example: `  wrmsprobe token --operator alice --scope read --scope run`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, scope := range scopes {
				if scope != auth.ScopeRead && scope != auth.ScopeRun {
					return fmt.Errorf("unknown scope %q (want %s or %s)", scope, auth.ScopeRead, auth.ScopeRun)
				}
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.SigningKey == "" {
				return errors.New("no signing key: set auth.signing_key or JWT_SIGNING_KEY")
			}
			if ttl > 0 {
				cfg.Auth.TokenTTL = ttl
			}

			tokens := auth.NewJWTService(auth.JWTConfig{
				SigningKey: cfg.Auth.SigningKey,
				Issuer:     cfg.Auth.Issuer,
				Audience:   cfg.Auth.Audience,
				TTL:        cfg.Auth.TokenTTL,
			})
			token, expiresAt, err := tokens.IssueToken(operator, scopes...)
			if err != nil {
				return err
			}

			if strings.EqualFold(opts.format, report.FormatJSON) {
				return json.NewEncoder(opts.out).Encode(map[string]string{
					"token":      token,
					"expires_at": expiresAt.UTC().Format(time.RFC3339),
				})
			}
			_, err = fmt.Fprintln(opts.out, token)
			return err
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "operator name stored as the token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "granted scope: read or run (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
