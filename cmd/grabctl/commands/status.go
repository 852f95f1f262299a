package commands

import (
	"github.com/spf13/cobra"

	"github.com/mediagrab/api/internal/model"
	"github.com/mediagrab/api/pkg/poller"
)

func newStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Args:  cobra.ExactArgs(1),
		Short: "Show the state of a download",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Printf("%s  %s  %s\n", d.ID, d.Status, d.URL)
			switch d.Status {
			case model.StatusFailed:
				cmd.Printf("error: %s\n", d.ErrorMessage)
			default:
				cmd.Println(poller.StageMessage(d.Stage, d.Progress))
			}
			return nil
		},
	}
}
