package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jo-hoe/designcase/internal/backend/auth"
	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <userId>",
	Short: "Issue a bearer token for local testing",
	Long:  `Sign an HS256 token with auth.jwtSecret whose subject is the given user id.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	if appConfig.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is not configured; requests are identified by the " + appConfig.Auth.UserHeader + " header")
	}
	token, err := auth.IssueToken(appConfig.Auth.JWTSecret, args[0], tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
