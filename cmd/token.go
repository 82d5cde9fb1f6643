// ABOUTME: Admin JWT issuance and per-account OAuth token management
// ABOUTME: authorize/exchange let headless deployments complete the OAuth flow without the HTTP callback

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"greader-sync/bootstrap"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage admin API tokens and account OAuth tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed admin API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.HTTP.AdminSecret == "" {
			return errors.New("ADMIN_TOKEN_SECRET is not set")
		}
		auth, err := bootstrap.NewAuthenticator(cfg, logger)
		if err != nil {
			return err
		}

		subject, _ := cmd.Flags().GetString("subject")
		accounts, _ := cmd.Flags().GetStringSlice("account")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := auth.Issue(subject, accounts, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

// oauthAccount resolves an account that signs in with OAuth
func oauthAccount(deps *bootstrap.Dependencies, id string) (*bootstrap.Account, error) {
	account, err := lookupAccount(deps, id)
	if err != nil {
		return nil, err
	}
	if account.Tokens == nil {
		return nil, fmt.Errorf("account %q does not use OAuth", id)
	}
	return account, nil
}

var tokenAuthorizeCmd = &cobra.Command{
	Use:   "authorize <account>",
	Short: "Print the provider consent URL for an OAuth account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := oauthAccount(deps, args[0])
		if err != nil {
			return err
		}
		redirect, _ := cmd.Flags().GetString("redirect-url")
		if redirect == "" {
			redirect = cfg.HTTP.OAuthRedirectURL
		}
		if redirect == "" {
			return errors.New("no redirect URL: set OAUTH_REDIRECT_URL or --redirect-url")
		}

		fmt.Fprintln(cmd.OutOrStdout(), account.Tokens.AuthCodeURL(uuid.NewString(), redirect))
		return nil
	},
}

var tokenExchangeCmd = &cobra.Command{
	Use:   "exchange <account> <code>",
	Short: "Exchange an authorization code and store the tokens",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := oauthAccount(deps, args[0])
		if err != nil {
			return err
		}
		redirect, _ := cmd.Flags().GetString("redirect-url")
		if redirect == "" {
			redirect = cfg.HTTP.OAuthRedirectURL
		}

		token, err := account.Tokens.Exchange(cmd.Context(), args[1], redirect)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored token for %s, expires %s\n", args[0], token.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status <account>",
	Short: "Show the stored OAuth token state of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := oauthAccount(deps, args[0])
		if err != nil {
			return err
		}
		status, err := account.Tokens.Status(cmd.Context())
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), "json", status)
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <account>",
	Short: "Delete the stored OAuth token of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := oauthAccount(deps, args[0])
		if err != nil {
			return err
		}
		if err := account.Tokens.Revoke(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked token for %s\n", args[0])
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().String("subject", "admin", "token subject")
	tokenIssueCmd.Flags().StringSlice("account", nil, "restrict the token to these accounts (default: all)")
	tokenIssueCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	for _, c := range []*cobra.Command{tokenAuthorizeCmd, tokenExchangeCmd} {
		c.Flags().String("redirect-url", "", "OAuth redirect URL (default: OAUTH_REDIRECT_URL)")
	}

	tokenCmd.AddCommand(tokenIssueCmd, tokenAuthorizeCmd, tokenExchangeCmd, tokenStatusCmd, tokenRevokeCmd)
	rootCmd.AddCommand(tokenCmd)
}
