// Command nexus runs the LibEuFin Nexus EBICS/ISO 20022 gateway: key
// setup, one-shot submit/fetch cycles for cron-style invocation, and the
// long-running serve mode (C7+C8 supervised by C10, fronted by C9).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"libeufin-nexus/internal/config"
	"libeufin-nexus/internal/ebics"
	"libeufin-nexus/internal/ebicsclient"
	"libeufin-nexus/internal/fetchloop"
	"libeufin-nexus/internal/httpapi"
	"libeufin-nexus/internal/iso20022/dialect"
	_ "libeufin-nexus/internal/iso20022/dialect/generic"
	_ "libeufin-nexus/internal/iso20022/dialect/gls"
	_ "libeufin-nexus/internal/iso20022/dialect/postfinance"
	"libeufin-nexus/internal/scheduler"
	"libeufin-nexus/internal/store"
	"libeufin-nexus/internal/submitloop"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "nexus",
		Short:   "LibEuFin Nexus: an EBICS-to-ISO20022 payment gateway",
		Version: version,
	}

	rootCmd.AddCommand(
		newSetupCmd(),
		newSubmitCmd(),
		newFetchCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newEbicsClient(cfg *config.Config) *ebicsclient.Client {
	return ebicsclient.New(ebicsclient.Config{
		HostBaseURL:           cfg.Ebics.HostBaseURL,
		HostID:                cfg.Ebics.HostID,
		UserID:                cfg.Ebics.UserID,
		PartnerID:             cfg.Ebics.PartnerID,
		SystemID:              cfg.Ebics.SystemID,
		ClientPrivateKeysFile: cfg.Ebics.ClientPrivateKeysFile,
		BankPublicKeysFile:    cfg.Ebics.BankPublicKeysFile,
		BankDialect:           cfg.Ebics.BankDialect,
	}, nil)
}

func openStore(ctx context.Context, cfg *config.Config) (*store.DB, error) {
	return store.New(ctx, store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
}

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ebics-setup",
		Short: "Generate subscriber keys and exchange them with the bank (INI/HIA/HPB)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := newEbicsClient(cfg)

			clientFp, bankFp, err := client.Setup(cmd.Context())
			if err != nil {
				return fmt.Errorf("ebics setup: %w", err)
			}

			fmt.Printf("client fingerprint: %s\n", hex.EncodeToString(clientFp[:]))
			fmt.Printf("bank fingerprint:   %s\n", hex.EncodeToString(bankFp[:]))
			fmt.Println("compare the bank fingerprint against the key letter, then flip `accepted: true` in",
				cfg.Ebics.BankPublicKeysFile)
			return nil
		},
	}
}

func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ebics-submit",
		Short: "Run one submit cycle (take_unsubmitted -> upload_cct) and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			loop := submitloop.New(db, newEbicsClient(cfg), submitloop.Config{
				Currency:     cfg.Currency,
				Frequency:    cfg.Submit.Frequency,
				DebtorIBAN:   cfg.Ebics.IBAN,
				DebtorName:   cfg.Ebics.AccountHolder,
				DebtorBIC:    cfg.Ebics.BIC,
				AccountPayto: accountPayto(cfg),
			})
			loop.RunOnce(cmd.Context())

			if _, lastErr := loop.Health(); lastErr != nil {
				return fmt.Errorf("submit cycle: %w", lastErr)
			}
			return nil
		},
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ebics-fetch",
		Short: "Run one fetch cycle (download + extract + ingest every level) and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			dlct, ok := dialect.Get(cfg.Ebics.BankDialect)
			if !ok {
				return fmt.Errorf("no dialect registered under %q", cfg.Ebics.BankDialect)
			}

			loop := fetchloop.New(db, newEbicsClient(cfg), fetchloop.Config{
				Currency:     cfg.Currency,
				Frequency:    cfg.Fetch.Frequency,
				Levels:       []ebics.FetchLevel{ebics.LevelNotification, ebics.LevelReport, ebics.LevelStatement},
				Dialect:      dlct,
				AccountPayto: accountPayto(cfg),
			})
			loop.RunOnce(cmd.Context())

			if _, lastErr := loop.Health(); lastErr != nil {
				return fmt.Errorf("fetch cycle: %w", lastErr)
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP façade and the supervised submit/fetch loops until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			dlct, ok := dialect.Get(cfg.Ebics.BankDialect)
			if !ok {
				return fmt.Errorf("no dialect registered under %q", cfg.Ebics.BankDialect)
			}

			client := newEbicsClient(cfg)
			submit := submitloop.New(db, client, submitloop.Config{
				Currency:     cfg.Currency,
				Frequency:    cfg.Submit.Frequency,
				DebtorIBAN:   cfg.Ebics.IBAN,
				DebtorName:   cfg.Ebics.AccountHolder,
				DebtorBIC:    cfg.Ebics.BIC,
				AccountPayto: accountPayto(cfg),
			})
			fetch := fetchloop.New(db, client, fetchloop.Config{
				Currency:     cfg.Currency,
				Frequency:    cfg.Fetch.Frequency,
				Levels:       []ebics.FetchLevel{ebics.LevelNotification, ebics.LevelReport, ebics.LevelStatement},
				Dialect:      dlct,
				AccountPayto: accountPayto(cfg),
			})

			sched := scheduler.New(submit, fetch)

			ctx, cancel := context.WithCancel(context.Background())
			sched.Start(ctx)

			token, authEnabled := cfg.HTTPD.BearerToken()
			srv := httpapi.New(httpapi.Config{
				Currency:     cfg.Currency,
				AccountPayto: accountPayto(cfg),
				BearerToken:  token,
				AuthEnabled:  authEnabled,
				RateLimitMax: 120,
				RateLimitWindowSeconds: 60,
			}, db, sched)

			serveErr := make(chan error, 1)
			go func() {
				addr, err := httpapi.Addr(cfg.HTTPD.Serve, cfg.HTTPD.Port, cfg.HTTPD.UnixPath)
				if err != nil {
					serveErr <- err
					return
				}
				if cfg.HTTPD.Serve == "unix" {
					serveErr <- srv.ListenUnix(addr)
					return
				}
				serveErr <- srv.Listen(addr)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-quit:
				slog.Info("shutting down")
			case err := <-serveErr:
				if err != nil {
					slog.Error("http server error", "error", err)
				}
			}

			cancel()
			sched.Stop()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// accountPayto is the configured account's canonical payto URI, used to
// key the LISTEN/NOTIFY channel and the single-account store operations
// (spec §1 Non-goals: no multi-tenant routing).
func accountPayto(cfg *config.Config) string {
	return "payto://iban/" + cfg.Ebics.IBAN
}
