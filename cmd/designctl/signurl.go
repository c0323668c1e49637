package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jo-hoe/designcase/internal/core"
	"github.com/spf13/cobra"
)

var (
	signUser string
	signTTL  time.Duration
)

var signURLCmd = &cobra.Command{
	Use:   "sign-url <designFileId>",
	Short: "Print a time-limited URL for a design file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignURL,
}

func init() {
	signURLCmd.Flags().StringVar(&signUser, "user", "", "owner of the design file")
	signURLCmd.Flags().DurationVar(&signTTL, "ttl", core.DefaultSignedURLTTL, "lifetime of the URL")
	_ = signURLCmd.MarkFlagRequired("user")
}

func runSignURL(cmd *cobra.Command, args []string) error {
	return withCoreService(cmd, func(ctx context.Context, service *core.CoreService) error {
		signed, err := service.SignedURL(ctx, args[0], signUser, signTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed.URL)
		return nil
	})
}
