package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vku/taskchat/internal/auth"
	"github.com/vku/taskchat/internal/config"
)

var (
	tokenUserID   int64
	tokenUsername string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for a user",
	Long:  `Mints an HS256 access token signed with the configured secret, for local testing against the gateway.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "Numeric user id (required)")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "Username for the sub claim (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 7*24*time.Hour, "Token lifetime")
	tokenCmd.MarkFlagRequired("user-id")
	tokenCmd.MarkFlagRequired("username")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not configured")
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	token, err := verifier.Sign(tokenUserID, tokenUsername, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
