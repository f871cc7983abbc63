package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harhitroot/tgexport/internal/telegram"
	"github.com/harhitroot/tgexport/pkg/auth"
	"github.com/harhitroot/tgexport/pkg/config"
	"github.com/harhitroot/tgexport/pkg/export"
	"github.com/harhitroot/tgexport/pkg/logger"
	"github.com/harhitroot/tgexport/pkg/media"
	"github.com/harhitroot/tgexport/pkg/progress"
	"github.com/harhitroot/tgexport/pkg/ratelimit"
	"github.com/harhitroot/tgexport/pkg/retry"
	"github.com/harhitroot/tgexport/pkg/state"
	"github.com/harhitroot/tgexport/pkg/storage"
)

var (
	outputDir    string
	mediaTypes   []string
	maxParallel  int
	messageLimit int
	resetCursor  bool
)

var exportCmd = &cobra.Command{
	Use:   "export [channel]",
	Short: "Export a channel's media and message history",
	Long: `Export all messages and media from a Telegram channel.

The channel may be given as an @username or a numeric channel ID. When
omitted, the channels visible in your dialogs are listed for interactive
selection.

The export resumes from where the previous run stopped. Files already in the
output directory are skipped.`,
	Example: `  # Export a public channel by username
  tgexport export @golang_news

  # Export by numeric ID into a custom directory, photos and videos only
  tgexport export 1234567890 --output ./archive --media-types photo,video

  # Start over, ignoring the saved position
  tgexport export @golang_news --reset`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default ./export)")
	exportCmd.Flags().StringSliceVar(&mediaTypes, "media-types", nil, "media types to download (all, photo, video, audio, pdf, document, ...)")
	exportCmd.Flags().IntVar(&maxParallel, "parallel", 0, "maximum parallel downloads per batch")
	exportCmd.Flags().IntVar(&messageLimit, "message-limit", 0, "messages fetched per history page")
	exportCmd.Flags().BoolVar(&resetCursor, "reset", false, "discard the saved cursor and start from the beginning")
}

func runExport(cmd *cobra.Command, args []string) error {
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
		channel, err := pickChannel(ctx, client, args)
		if err != nil {
			return err
		}
		log.WithFields(map[string]interface{}{
			"channel_id": channel.ID,
			"title":      channel.Title,
		}).Info("exporting channel")

		outDir := cfg.Output.BaseDirectory
		if cfg.Output.CreateChannelFolders {
			outDir = filepath.Join(outDir, channelFolder(channel))
		}

		store := storage.NewManager(outDir, cfg.Output.MessageLogName)
		cursor := state.NewStore(outDir, channel.ID, log)
		if resetCursor {
			if err := cursor.Reset(); err != nil {
				return err
			}
		}

		gate := ratelimit.NewRequestGate(
			cfg.RateLimit.RequestsPerWindow,
			cfg.RateLimit.Window,
			cfg.RateLimit.Cooldown,
		)
		retrier := retry.NewRetrier(&retry.Config{
			MaxAttempts: cfg.RateLimit.MaxRetries,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:  cfg.RateLimit.RetryBaseDelay,
				Multiplier: 2.0,
				Jitter:     cfg.RateLimit.RetryJitter,
			},
			RetryIf: retry.DefaultRetryIf,
			Gate:    gate,
			Logger:  log,
		})

		fetcher := telegram.NewChannelFetcher(client, channel, log)
		dl := telegram.NewDownloader(client, log)

		paginator := export.NewPaginator(fetcher, retrier, cfg.Download.MessageLimit, log)
		scheduler := export.NewScheduler(dl, store, retrier,
			cfg.Download.MaxParallel, cfg.Download.ItemDelay, cfg.Download.BatchDelay, log)
		tracker := progress.NewTracker(os.Stdout, log)

		orch := export.NewOrchestrator(paginator, scheduler, store, cursor, tracker,
			media.NewAllowSet(cfg.Download.MediaTypes), cfg.Download.PageDelay, log)

		if err := orch.Run(ctx, channel.ID); err != nil {
			return err
		}

		snap := tracker.Snapshot()
		fmt.Printf("done: %d downloaded, %d skipped in %s\n",
			snap.TotalDownloaded, snap.SkippedFiles, tracker.Elapsed().Round(time.Second))
		return nil
	})
}

// setup loads configuration, initializes logging and resolves credentials
func setup() (*config.Config, logger.Logger, error) {
	flags := map[string]interface{}{
		"output":        outputDir,
		"parallel":      maxParallel,
		"media-types":   mediaTypes,
		"message-limit": messageLimit,
		"log-level":     logLevel,
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		// credentials may still come from the keychain, validate later
		cfg = config.DefaultConfig()
		if ferr := cfg.LoadFromFile(configFile); ferr != nil {
			return nil, nil, ferr
		}
		if eerr := cfg.LoadFromEnv(); eerr != nil {
			return nil, nil, eerr
		}
		cfg.MergeFlags(flags)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, err
	}
	log := logger.GetLogger()

	if cfg.Telegram.APIID <= 0 || cfg.Telegram.APIHash == "" {
		credManager, err := auth.NewManager()
		if err != nil {
			return nil, nil, err
		}
		creds, err := credManager.RetrieveDefault()
		if err != nil {
			return nil, nil, fmt.Errorf("no API credentials found, run 'tgexport auth login' first")
		}
		cfg.Telegram.APIID = creds.APIID
		cfg.Telegram.APIHash = creds.APIHash
		if cfg.Telegram.Phone == "" {
			cfg.Telegram.Phone = creds.Phone
		}
		log.WithField("phone", creds.Phone).Debug("using stored credentials")
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// pickChannel resolves the channel argument, or lists dialogs for
// interactive selection when no argument was given.
func pickChannel(ctx context.Context, client *telegram.Client, args []string) (*telegram.Channel, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return client.ResolveChannel(ctx, strings.TrimSpace(args[0]))
	}

	channels, err := client.Dialogs(ctx)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels found in your dialogs")
	}

	fmt.Println("Select a channel to export:")
	for i, ch := range channels {
		name := ch.Title
		if ch.Username != "" {
			name = fmt.Sprintf("%s (@%s)", ch.Title, ch.Username)
		}
		fmt.Printf("  %3d. %s\n", i+1, name)
	}
	fmt.Print("Number: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(channels) {
		return nil, fmt.Errorf("invalid selection")
	}
	return &channels[n-1], nil
}

// channelFolder derives a filesystem-safe directory name for a channel
func channelFolder(ch *telegram.Channel) string {
	if ch.Username != "" {
		return ch.Username
	}
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, ch.Title)
	if name == "" {
		name = fmt.Sprintf("channel_%d", ch.ID)
	}
	return name
}
