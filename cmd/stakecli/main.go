package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/babylonlabs-io/btc-staking/config"
	"github.com/babylonlabs-io/btc-staking/version"
)

const BinaryName = "stakecli"

// NewRootCmd creates the root command of stakecli. Every sub command builds
// artifacts offline and prints them as JSON.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   BinaryName,
		Short: fmt.Sprintf("%s - BTC staking transaction builder.", BinaryName),
		Long: fmt.Sprintf(`%s builds the scripts, staking, unbonding, slashing and withdrawal
transactions of BTC delegations. Nothing is signed or broadcast.`, BinaryName),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String(homeFlag, config.DefaultStakecliDir, "The application home directory")
	rootCmd.PersistentFlags().String(btcNetworkFlag, "", "Overrides the btc network of the config file")
	rootCmd.PersistentFlags().String(paramsFileFlag, "", "Overrides the params file of the config file")

	rootCmd.AddCommand(
		CommandInit(),
		CommandScripts(),
		CommandAddress(),
		CommandStakingTx(),
		CommandUnbondingTx(),
		CommandWithdrawTx(),
		version.CommandVersion(BinaryName),
	)

	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your %s CLI '%s'\n", BinaryName, err)
		os.Exit(1) //nolint:gocritic
	}
}
