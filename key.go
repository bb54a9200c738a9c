package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/dedup"

	"github.com/spf13/cobra"
)

func keyCommand() *cobra.Command {
	var (
		media  bool
		origin int64
		msgID  int64
	)
	cmd := &cobra.Command{
		Use:   "key <text>",
		Short: "Print the dedup key and today's bucket for a message body",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args, " ")
			key := dedup.DeriveKey(body, media, origin, msgID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, dedup.BucketOf(time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&media, "media", false, "the message carries media")
	cmd.Flags().Int64Var(&origin, "origin", 0, "origin chat id, used for media-only keys")
	cmd.Flags().Int64Var(&msgID, "msg", 0, "message id, used for media-only keys")
	return cmd
}
