// Package main implements sweepd, the deposit monitoring and
// collection daemon: it watches deposit addresses over per-coin
// subscription streams and moves confirmed balances to the custody
// address.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/glebkoxan36/mypip/internal/chains"
	"github.com/glebkoxan36/mypip/internal/config"
	"github.com/glebkoxan36/mypip/internal/engine"
	"github.com/glebkoxan36/mypip/internal/keyring"
	"github.com/glebkoxan36/mypip/internal/nodeapi"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logrus.StandardLogger()
	log.SetLevel(logrus.Level(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := createStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("store initialization failed")
	}
	defer stores.cleanup()

	creds, err := loadKeyring(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("keyring load failed")
	}

	coins, err := buildCoins(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("coin initialization failed")
	}

	coord, err := engine.New(engine.Config{
		Coins:       coins,
		Watches:     stores.watches,
		Records:     stores.records,
		Archive:     stores.archive,
		Credentials: creds,
		Logger:      log,
	})
	if err != nil {
		log.WithError(err).Fatal("engine initialization failed")
	}

	if err := coord.Start(ctx); err != nil {
		log.WithError(err).Fatal("engine start failed")
	}
	log.WithFields(logrus.Fields{
		"coins": len(cfg.Coins),
		"store": cfg.StoreType,
	}).Info("sweepd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutting down")

	// A second signal skips the grace period.
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Warn("forced exit")
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := coord.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown incomplete, interrupted sweeps recover on next start")
	}
	log.Info("shutdown complete")
}

// buildCoins dials each configured coin's node capability and
// subscription stream.
func buildCoins(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) ([]engine.CoinRuntime, error) {
	coins := make([]engine.CoinRuntime, 0, len(cfg.Coins))
	for _, coin := range cfg.Coins {
		desc := coin.Descriptor

		capability, err := chains.New(desc, chains.Endpoints{
			DataURL: coin.DataURL,
			RPCURL:  coin.RPCURL,
			APIKey:  coin.APIKey,
		}, log)
		if err != nil {
			return nil, err
		}

		endpoint, err := nodeapi.WSEndpoint(coin.DataURL, coin.APIKey)
		if err != nil {
			return nil, err
		}
		wsCfg := nodeapi.DefaultWSConfig()
		wsCfg.Logger = log.WithField("coin", desc.Symbol)
		channel, err := nodeapi.NewChannel(ctx, endpoint, &wsCfg)
		if err != nil {
			return nil, err
		}

		coins = append(coins, engine.CoinRuntime{
			Descriptor: desc,
			Capability: capability,
			Channel:    channel,
		})
	}
	return coins, nil
}

// loadKeyring builds the signing credential source. Without a keyring
// file the engine still monitors; sweeps fail until credentials exist.
func loadKeyring(cfg *config.Config, log logrus.FieldLogger) (keyring.Source, error) {
	if cfg.KeyringFile == "" {
		log.Warn("no keyring file configured, collection requires signing credentials")
		return keyring.NewStatic(), nil
	}
	return keyring.NewStaticFromFile(cfg.KeyringFile)
}
