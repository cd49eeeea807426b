package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "firmgate",
	Short: "firmgate is a hardware-wallet trust core emulator",
	Long: `firmgate runs the trust core of a hardware-wallet firmware as a host
process: session cache, PIN lock gate, CoinJoin preauthorization, and the
path-unlock protocol, served to host software over an HTTP bridge.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
