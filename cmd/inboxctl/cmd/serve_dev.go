package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/devserver"
	"github.com/wesm/inboxctl/internal/fileutil"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/store"
)

var (
	devPort   int
	devAPIKey string
	devSeed   bool

	devImportMbox   string
	devImportFolder string
)

var serveDevCmd = &cobra.Command{
	Use:   "serve-dev",
	Short: "Run the local reference mail server",
	Long: `Run a self-contained mail server backed by SQLite that speaks the same
HTTP API as the remote mail gateway. Useful for trying the client
without a real backend.

Settings come from the [devserver] section of config.toml. Users are
created the first time an address is used.

With --seed the configured user's mailbox is filled with demo messages
and contacts before the server starts. With --import-mbox the messages
of an mbox file are filed into --import-folder for the same user.

Use Ctrl+C to stop the server gracefully.`,
	RunE: runServeDev,
}

func init() {
	serveDevCmd.Flags().IntVar(&devPort, "port", 0, "listen port (overrides config)")
	serveDevCmd.Flags().StringVar(&devAPIKey, "api-key", "", "require this API key (overrides config)")
	serveDevCmd.Flags().BoolVar(&devSeed, "seed", false, "insert demo data for user.email before serving")
	serveDevCmd.Flags().StringVar(&devImportMbox, "import-mbox", "", "import messages from an mbox file for user.email")
	serveDevCmd.Flags().StringVar(&devImportFolder, "import-folder", mail.FolderInbox, "folder receiving --import-mbox messages")
	rootCmd.AddCommand(serveDevCmd)
}

func runServeDev(cmd *cobra.Command, args []string) error {
	if devPort != 0 {
		cfg.DevServer.Port = devPort
	}
	if devAPIKey != "" {
		cfg.DevServer.APIKey = devAPIKey
	}

	if err := fileutil.SecureMkdirAll(cfg.HomeDir, 0700); err != nil {
		return fmt.Errorf("create home: %w", err)
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.InitSchema(); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	if (devSeed || devImportMbox != "") && cfg.User.Email == "" {
		return errors.New("--seed and --import-mbox need user.email in config.toml")
	}
	if devSeed {
		res, err := devserver.Seed(st, cfg.User.Email, time.Now())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		fmt.Printf("Seeded %d message(s) and %d contact(s) for %s\n", res.Messages, res.Contacts, cfg.User.Email)
	}

	if devImportMbox != "" {
		if err := importMbox(st, devImportMbox, devImportFolder); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := devserver.NewServer(cfg, st, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Printf("inboxctl dev server started\n")
	fmt.Printf("  API server: http://%s\n", cfg.DevServerAddr())
	fmt.Printf("  Database:   %s\n", cfg.DatabasePath())
	if stats, err := st.GetStats(); err == nil {
		fmt.Printf("  Users: %d  Messages: %d  Contacts: %d\n", stats.UserCount, stats.MessageCount, stats.ContactCount)
	}
	fmt.Printf("\nPress Ctrl+C to stop.\n")

	select {
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
	case err := <-serverErr:
		return fmt.Errorf("dev server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dev server shutdown", "error", err)
	}
	fmt.Println("Server stopped.")
	return nil
}

func importMbox(st *store.Store, path, folder string) error {
	f, err := fileutil.OpenNoFollow(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer f.Close()

	res, err := devserver.ImportMbox(st, cfg.User.Email, folder, f, logger)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	fmt.Printf("Imported %d message(s) into %s", res.Imported, folder)
	if res.Skipped > 0 {
		fmt.Printf(" (%d skipped)", res.Skipped)
	}
	fmt.Println()
	return nil
}
