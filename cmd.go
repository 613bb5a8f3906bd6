package main

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Manjussha/inkd/internal/config"
	"github.com/Manjussha/inkd/internal/credit"
	"github.com/Manjussha/inkd/internal/db"
	"github.com/Manjussha/inkd/internal/wizard"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inkd",
		Short:         "Credit-metered text humanizer",
		Long:          "inkd rewrites text in a chosen tone through a chat-completion provider and charges callers one credit per word.",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
		},
		&cobra.Command{
			Use:   "setup",
			Short: "Interactive first-run configuration, writes .env",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, args []string) error { return wizard.Run(Version) },
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "inkd", Version)
			},
		},
		newGrantCmd(),
		newBalanceCmd(),
	)
	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("inkd %s\n", Version))
	return root
}

// newGrantCmd credits words from the shell, for operators without Telegram.
func newGrantCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "grant <userId> <words>",
		Short: "Add word credits to a caller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("words must be a positive integer, got %q", args[1])
			}
			return withLedger(cmd.Context(), func(database *db.DB, l credit.Ledger) error {
				bal, err := l.Credit(cmd.Context(), args[0], amount, reason)
				if err != nil {
					return err
				}
				database.WriteLog(args[0], "info", fmt.Sprintf("granted %d words from the command line, balance %d", amount, bal))
				fmt.Fprintf(cmd.OutOrStdout(), "%s: +%d words, balance %d\n", args[0], amount, bal)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", credit.ReasonGrant, "reason stored in the transaction history")
	return cmd
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <userId>",
		Short: "Print a caller's word credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(_ *db.DB, l credit.Ledger) error {
				bal, err := l.Balance(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d words\n", args[0], bal)
				return nil
			})
		},
	}
}

func withLedger(ctx context.Context, fn func(*db.DB, credit.Ledger) error) error {
	cfg := config.Load()
	if cfg.LedgerKind == "memory" {
		return fmt.Errorf("INKD_LEDGER=memory keeps balances inside the server process only")
	}
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	l, closeLedger, err := openLedger(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeLedger()
	return fn(database, l)
}

func openDB(cfg *config.Config) (*db.DB, error) {
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("db.New: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("db.Migrate: %w", err)
	}
	return database, nil
}

// openLedger builds the ledger named by INKD_LEDGER. The returned func
// releases it.
func openLedger(ctx context.Context, cfg *config.Config, database *db.DB) (credit.Ledger, func(), error) {
	switch cfg.LedgerKind {
	case "memory":
		log.Println("⚠  INKD_LEDGER=memory — balances are lost on restart.")
		return credit.NewMemoryLedger(), func() {}, nil
	case "postgres":
		pg, err := credit.NewPostgresLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("Credit ledger: postgres")
		return pg, pg.Close, nil
	case "sqlite", "":
		return credit.NewSQLiteLedger(database), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown INKD_LEDGER %q (want sqlite, postgres or memory)", cfg.LedgerKind)
	}
}
