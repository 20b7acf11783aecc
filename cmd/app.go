package cmd

import (
	"fmt"
	"time"

	"wave-swap/config"
	"wave-swap/pkg/balance"
	"wave-swap/pkg/catalog"
	"wave-swap/pkg/chain"
	"wave-swap/pkg/privacy"
	"wave-swap/pkg/quote"
	"wave-swap/pkg/recovery"
	"wave-swap/pkg/router"
	"wave-swap/pkg/swap"
	"wave-swap/pkg/wallet"
)

// app bundles the wired session for the commands. One app per invocation;
// nothing is held at package scope.
type app struct {
	cfg        *config.Config
	chain      *chain.Client
	router     *router.Client
	privacy    *privacy.Client
	signer     *wallet.LocalSigner
	catalog    *catalog.Catalog
	balances   *balance.Aggregator
	engine     *quote.Engine
	controller *swap.Controller
	recoverer  *recovery.Recoverer
}

// newApp wires every collaborator. needSigner controls whether a missing
// private key is fatal; read-only commands run without one.
func newApp(needSigner bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(chain.Config{
		RPCUrl:        cfg.RPCUrl,
		Commitment:    cfg.Commitment,
		SkipPreflight: cfg.SkipPreflight,
	})
	if err != nil {
		return nil, err
	}

	routerClient := router.NewClient(cfg.RouterURL)
	privacyClient := privacy.NewClient(cfg.PrivacyURL)

	a := &app{
		cfg:      cfg,
		chain:    chainClient,
		router:   routerClient,
		privacy:  privacyClient,
		catalog:  catalog.New(chainClient, catalog.NewRegistry(cfg.TokenListURL)),
		balances: balance.NewAggregator(chainClient, privacyClient),
	}

	a.engine = quote.NewEngine(routerClient, quote.Options{SlippageBps: cfg.SlippageBps})

	if cfg.PrivateKey == "" {
		if needSigner {
			return nil, fmt.Errorf("private key not configured. Set WAVE_SWAP_PRIVATE_KEY or add private_key to .wave-swap.yaml")
		}
		return a, nil
	}

	signer, err := wallet.NewLocalSigner(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	a.signer = signer
	a.engine.SetIdentity(signer.PublicKey().String())
	a.controller = swap.NewController(routerClient, privacyClient, chainClient, signer, a.balances, swap.Options{
		OrderPollInterval: time.Second,
	})
	a.recoverer = recovery.NewRecoverer(privacyClient, a.balances, signer.PublicKey().String(), a.controller.RecoveryRecordRef())
	return a, nil
}
