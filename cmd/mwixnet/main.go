package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mwixnet "github.com/scilio/mwixnet-go"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mwixnet",
		Usage: "a Mimblewimble-style coin-swap mix node",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "testnet", Usage: "use testnet defaults"},
			&cli.StringFlag{Name: "config", Usage: "path to the encrypted server config"},
			&cli.StringFlag{Name: "bind_addr", Usage: "override the RPC bind address"},
			&cli.StringFlag{Name: "grin_node_secret_path", Usage: "override the node API secret path"},
			&cli.StringFlag{Name: "wallet_owner_secret_path", Usage: "override the wallet owner API secret path"},
			&cli.IntFlag{Name: "interval_s", Usage: "override the round interval, in seconds"},
		},
		Commands: []*cli.Command{
			initConfigCommand(),
		},
		Action: startAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mwixnet:", err)
		os.Exit(1)
	}
}

func chainType(c *cli.Context) mwixnet.ChainType {
	if c.Bool("testnet") {
		return mwixnet.Testnet
	}
	return mwixnet.Mainnet
}

func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return mwixnet.DefaultConfigPath(chainType(c))
}

// initConfigCommand writes a fresh encrypted config file, prompting for and
// confirming a password, mirroring the original's init-config subcommand.
func initConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "write a new encrypted server config",
		Action: func(c *cli.Context) error {
			chain := chainType(c)

			key := mwixnet.RandomSecret()

			interval := uint64(mwixnet.DefaultInterval)
			if c.IsSet("interval_s") {
				interval = uint64(c.Int("interval_s"))
			}

			addr := c.String("bind_addr")
			if addr == "" {
				addr = "0.0.0.0:3000"
			}

			cfg := &mwixnet.ServerConfig{
				Key:            key,
				IntervalS:      interval,
				Addr:           addr,
				NodeURL:        mwixnet.DefaultNodeURL(chain),
				WalletOwnerURL: mwixnet.DefaultWalletOwnerURL(chain),
			}
			if p := c.String("grin_node_secret_path"); p != "" {
				cfg.NodeSecretPath = &p
			}
			if p := c.String("wallet_owner_secret_path"); p != "" {
				cfg.WalletOwnerSecretPath = &p
			}

			password, err := mwixnet.PromptPasswordConfirm()
			if err != nil {
				return err
			}

			path := configPath(c)
			if err := mwixnet.WriteConfig(path, cfg, password); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "wrote config to", path)
			return nil
		},
	}
}

// startAction is the default action: load the config, open the store,
// start the round scheduler and the RPC listener, and block on a signal.
func startAction(c *cli.Context) error {
	path := configPath(c)

	password, err := mwixnet.PromptPassword("Server password: ")
	if err != nil {
		return err
	}
	cfg, err := mwixnet.LoadConfig(path, password)
	if err != nil {
		return err
	}

	if addr := c.String("bind_addr"); addr != "" {
		cfg.Addr = addr
	}
	if p := c.String("grin_node_secret_path"); p != "" {
		cfg.NodeSecretPath = &p
	}
	if p := c.String("wallet_owner_secret_path"); p != "" {
		cfg.WalletOwnerSecretPath = &p
	}
	if c.IsSet("interval_s") {
		cfg.IntervalS = uint64(c.Int("interval_s"))
	}

	logger := mwixnet.DefaultLogger().Module("main")

	store, err := mwixnet.OpenSwapStore(path + ".db")
	if err != nil {
		return err
	}
	defer store.Close()

	node := mwixnet.NewHTTPNode(cfg.NodeURL, http.DefaultClient)
	wallet := mwixnet.NewHTTPWallet(cfg.WalletOwnerURL, http.DefaultClient)

	server := mwixnet.NewServerImpl(cfg.Key, store, node, wallet)

	scheduler := mwixnet.NewRoundScheduler(server, time.Duration(cfg.IntervalS)*time.Second)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	scheduler.Start(ctx)

	handler, err := mwixnet.NewRPCHandler(server)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Addr: cfg.Addr, Handler: handler}

	go func() {
		logger.Info("rpc listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("rpc server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	scheduler.Stop()
	return nil
}
