package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mediagrab/api/internal/model"
	"github.com/mediagrab/api/internal/resolver"
	"github.com/mediagrab/api/pkg/poller"
)

func newGetCommand(opts *globalOptions) *cobra.Command {
	var (
		format   string
		out      string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get <url>",
		Args:  cobra.ExactArgs(1),
		Short: "Download a video and save it locally",
		Example: `  grabctl get https://vimeo.com/76979871 --format mp4-hd
  grabctl get https://youtu.be/dQw4w9WgXcQ --format mp3 --out ./music`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if !resolver.ValidateURL(url) {
				return errors.New("unsupported URL: use a YouTube, Vimeo or Dailymotion link")
			}
			f := model.Format(format)
			if !f.IsValid() {
				return fmt.Errorf("unknown format %q", format)
			}

			ctx := cmd.Context()
			c := opts.client()

			id, err := c.Submit(ctx, url, f)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			cmd.Printf("Download %s started\n", id)

			p := poller.New(c)
			p.Interval = interval
			last := ""
			_, err = p.Wait(ctx, id, func(d *model.Download) {
				msg := poller.StageMessage(d.Stage, d.Progress)
				if msg != last {
					cmd.Println(msg)
					last = msg
				}
			})
			if err != nil {
				var jobErr *poller.JobFailedError
				if errors.As(err, &jobErr) {
					return fmt.Errorf("download failed: %s", jobErr.Message)
				}
				return err
			}

			path, err := c.Retrieve(ctx, id, out)
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
			cmd.Printf("Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(model.FormatMP4), "output format: mp4, mp4-hd, mp3, mp3-hq")
	cmd.Flags().StringVarP(&out, "out", "o", ".", "directory to save the file in")
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "status polling interval")

	return cmd
}
