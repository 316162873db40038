// signtxd is a demo harness driving signtx.Sign end to end against the
// internal/nativebtc stand-ins, standing in for the on-device host-channel
// daemon spec.md describes without a transport of its own. It exists to
// give the ambient stack (envconfig, logger, threads.Thread session
// supervision) a concrete entry point, per SPEC_FULL.md §5.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shiftcrypto/bitbox02-signtx/internal/nativebtc"
	"github.com/shiftcrypto/bitbox02-signtx/logger"
	"github.com/shiftcrypto/bitbox02-signtx/signtx"
	"github.com/shiftcrypto/bitbox02-signtx/threads"

	"github.com/kelseyhightower/envconfig"
)

// Config is the daemon's environment-driven configuration.
type Config struct {
	Coin     string `default:"btc" envconfig:"COIN" json:"coin"`
	NumInputs  uint32 `default:"2" envconfig:"NUM_INPUTS" json:"num_inputs"`
	NumOutputs uint32 `default:"2" envconfig:"NUM_OUTPUTS" json:"num_outputs"`
}

func main() {
	ctx := logger.ContextWithLogConfig(context.Background(), logger.NewDevelopmentConfig())

	cfg := &Config{}
	if err := envconfig.Process("SIGNTXD", cfg); err != nil {
		logger.Fatal(ctx, "load config : %s", err)
	}

	coin := signtx.CoinBTC
	if cfg.Coin == "ltc" {
		coin = signtx.CoinLTC
	}

	keystore, err := nativebtc.NewKeystore([]byte("signtxd demo seed, not for production use"))
	if err != nil {
		logger.Fatal(ctx, "build keystore : %s", err)
	}

	ui := nativebtc.NewAutoUI()
	screen := nativebtc.NewScreenStack()
	app := nativebtc.NewApp(keystore, ui)

	host := newDemoHost(coin, cfg.NumInputs, cfg.NumOutputs)

	thread := threads.NewThread("signtx-session", func(ctx context.Context, interrupt <-chan interface{}) error {
		return runSession(ctx, host, keystore, app, screen, host.init)
	})
	complete := thread.GetCompleteChannel()
	thread.Start(ctx)
	<-complete

	if err := thread.Error(); err != nil {
		logger.Error(ctx, "session thread : %s", err)
		os.Exit(1)
	}

	fmt.Println("screen events:")
	for _, e := range screen.Events() {
		fmt.Println(" ", e)
	}
	fmt.Println("statuses:")
	for _, s := range screen.Statuses() {
		fmt.Println(" ", s)
	}
}

func runSession(ctx context.Context, host signtx.HostChannel, keystore signtx.Keystore, app signtx.AppBTC,
	ui *nativebtc.ScreenStack, init *signtx.InitRequest) error {

	return signtx.Sign(ctx, init, host, keystore, app, ui, ui)
}
