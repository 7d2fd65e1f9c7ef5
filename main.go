// Package main is the entry point for pxw, the pixel war game server.
// It loads configuration and the signing key, starts the game controller
// and serves the web page and API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pixelwar.app/pxw/internal/config"
	"pixelwar.app/pxw/internal/game"
	"pixelwar.app/pxw/internal/identity"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/ledger"
	"pixelwar.app/pxw/internal/logger"
	"pixelwar.app/pxw/internal/sdk"
	"pixelwar.app/pxw/internal/types"
	"pixelwar.app/pxw/internal/web"
)

func main() {
	generateKey := flag.String("generate-key", "", "write a new signing key to this file, print its address and exit")
	flag.Parse()

	if *generateKey != "" {
		if err := writeKey(*generateKey); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
		os.Exit(1)
	}
	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "pxw.json"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("pxw exited", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info("pxw starting",
		zap.String("version", types.Version),
		zap.String("network", cfg.Network),
		zap.String("game", cfg.GameID))

	signer, err := loadWallet(cfg)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	log.Info("signing key loaded", zap.String("address", signer.Address()))

	if err := ensurePortAvailable(cfg.Port); err != nil {
		return fmt.Errorf("port %d unavailable: %w", cfg.Port, err)
	}

	j, err := journal.Open(cfg.DBFile)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() {
		if path, err := j.BackupCurrent(cfg.BackupsToKeep); err != nil {
			log.Warn("journal backup failed", zap.Error(err))
		} else {
			log.Info("journal backed up", zap.String("path", path))
		}
		j.Close()
	}()

	chain := ledger.NewClient(cfg.RPCURL, cfg.WSURL, log)
	client := sdk.New(sdk.Config{PackageID: cfg.PackageID, ClockID: cfg.ClockID}, chain, chain, log)
	feed := logger.New(200)

	controller := game.New(game.Options{
		GameID:          cfg.GameID,
		AdminCapID:      cfg.AdminCapID,
		Network:         cfg.Network,
		Backend:         client,
		Signer:          signer,
		Journal:         j,
		Feed:            feed,
		Logger:          log,
		SubscribeEvents: cfg.SubscribeEvents,
		AutoConnect:     cfg.AutoConnect,
	})

	server, err := web.NewServer(controller, j, web.Options{
		Port:    cfg.Port,
		Network: cfg.Network,
		Backups: cfg.BackupsToKeep,
		Feed:    feed,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize web server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	controller.Start(ctx)
	g.Go(func() error {
		<-controller.Done()
		return nil
	})
	g.Go(func() error {
		return server.Run(ctx)
	})

	err = g.Wait()
	log.Info("shutting down")
	controller.Stop()
	return err
}

// loadWallet prefers an imported seed over the key file.
func loadWallet(cfg *config.Config) (*identity.Identity, error) {
	if cfg.WalletSeed != "" {
		return identity.FromSeedHex(cfg.WalletSeed)
	}
	return identity.LoadOrCreateIdentity(cfg.KeyFile)
}

// writeKey creates a fresh key file. An existing file is left untouched.
func writeKey(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	id, err := identity.LoadOrCreateIdentity(path)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\nAddress: %s\n", path, id.Address())
	return nil
}

func ensurePortAvailable(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}
