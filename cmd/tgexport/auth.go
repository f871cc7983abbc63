package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harhitroot/tgexport/internal/telegram"
	"github.com/harhitroot/tgexport/pkg/auth"
	"github.com/harhitroot/tgexport/pkg/config"
	"github.com/harhitroot/tgexport/pkg/logger"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Telegram API credentials and the session",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store API credentials and sign in",
	Long: `Store your Telegram API credentials (from https://my.telegram.org) and
perform the interactive sign-in that creates the local session.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Terminate the session and remove stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("API ID: ")
	idLine, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	apiID, err := strconv.Atoi(strings.TrimSpace(idLine))
	if err != nil || apiID <= 0 {
		return fmt.Errorf("invalid API ID")
	}

	fmt.Print("API hash: ")
	hashLine, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	apiHash := strings.TrimSpace(hashLine)
	if apiHash == "" {
		return fmt.Errorf("API hash is required")
	}

	fmt.Print("Phone number (international format): ")
	phoneLine, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	phone := strings.TrimSpace(phoneLine)
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}

	credManager, err := auth.NewManager()
	if err != nil {
		return err
	}
	creds := &auth.Credentials{Phone: phone, APIID: apiID, APIHash: apiHash}
	if err := credManager.Store(creds); err != nil {
		return err
	}
	fmt.Println("Credentials stored.")

	// Sign in now so the session exists before the first export
	if err := logger.Initialize(&config.LoggingConfig{Level: logLevel}); err != nil {
		return err
	}
	log := logger.GetLogger()

	cfg := config.DefaultConfig()
	cfg.Telegram.APIID = apiID
	cfg.Telegram.APIHash = apiHash
	cfg.Telegram.Phone = phone

	client, err := telegram.New(&cfg.Telegram, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Run(ctx, func(ctx context.Context) error { return nil }); err != nil {
		return err
	}
	fmt.Println("Signed in.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	credManager, err := auth.NewManager()
	if err != nil {
		return err
	}

	accounts, err := credManager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No stored credentials. Run 'tgexport auth login'.")
		return nil
	}

	for _, creds := range accounts {
		masked := auth.Sanitize(creds)
		fmt.Printf("%s  api_id=%d  api_hash=%s  (updated %s)\n",
			masked.Phone, masked.APIID, masked.APIHash,
			masked.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	client, err := telegram.New(&cfg.Telegram, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Logout(ctx); err != nil {
		log.WithError(err).Warn("server-side logout failed")
	}

	credManager, err := auth.NewManager()
	if err != nil {
		return err
	}
	if cfg.Telegram.Phone != "" {
		if err := credManager.Delete(cfg.Telegram.Phone); err != nil {
			log.WithError(err).Warn("failed to remove stored credentials")
		}
	}

	fmt.Println("Logged out.")
	return nil
}
