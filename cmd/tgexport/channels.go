package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harhitroot/tgexport/internal/telegram"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List channels visible in your dialogs",
	Long:  `List the channels and groups this account can export, with their numeric IDs.`,
	Args:  cobra.NoArgs,
	RunE:  runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)
}

func runChannels(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	client, err := telegram.New(&cfg.Telegram, log)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return client.Run(ctx, func(ctx context.Context) error {
		channels, err := client.Dialogs(ctx)
		if err != nil {
			return err
		}
		if len(channels) == 0 {
			fmt.Println("No channels found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tTITLE")
		for _, ch := range channels {
			username := "-"
			if ch.Username != "" {
				username = "@" + ch.Username
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", ch.ID, username, ch.Title)
		}
		return w.Flush()
	})
}
