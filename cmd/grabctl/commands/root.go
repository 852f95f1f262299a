package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mediagrab/api/pkg/poller"
)

type globalOptions struct {
	server string
	token  string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "grabctl",
		Short:         "Download videos from YouTube, Vimeo and Dailymotion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("GRAB_SERVER", "http://localhost:8000"), "download API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("GRAB_TOKEN"), "bearer token")

	rootCmd.AddCommand(
		newGetCommand(opts),
		newStatusCommand(opts),
	)

	return rootCmd
}

func (o *globalOptions) client() *poller.Client {
	return poller.NewClient(o.server, o.token, nil)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
