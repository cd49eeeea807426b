package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/firmgate/devstore"
	bboltstore "github.com/jmcleod/firmgate/devstore/bbolt"
	"github.com/jmcleod/firmgate/pin"
)

var (
	provisionLabel      string
	provisionPin        string
	provisionPassphrase bool
	provisionAutoLockMs uint32
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Initialize the device configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := bboltstore.NewStoreFromFile(dataDir+"/device.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open device storage: %w", err)
		}
		defer store.Close()

		cfg, err := devstore.NewConfig(provisionLabel)
		if err != nil {
			return err
		}
		cfg.PassphraseProtection = provisionPassphrase
		cfg.AutoLockDelayMs = provisionAutoLockMs
		if provisionPin != "" {
			if err := pin.Set(cfg, provisionPin); err != nil {
				return err
			}
		}
		if err := store.Save(cfg); err != nil {
			return err
		}

		fmt.Printf("device %s provisioned\n", cfg.DeviceID)
		return nil
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provisionLabel, "label", "", "device label")
	provisionCmd.Flags().StringVar(&provisionPin, "pin", "", "device PIN (empty disables PIN protection)")
	provisionCmd.Flags().BoolVar(&provisionPassphrase, "passphrase", false, "enable passphrase protection")
	provisionCmd.Flags().Uint32Var(&provisionAutoLockMs, "autolock-ms", 0, "idle auto-lock delay in milliseconds (0 disables)")
	provisionCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "device storage directory")
	rootCmd.AddCommand(provisionCmd)
}
