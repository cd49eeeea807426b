package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	bboltstore "github.com/jmcleod/firmgate/devstore/bbolt"
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Factory-reset the device configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bboltstore.NewStoreFromFile(dataDir+"/device.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open device storage: %w", err)
		}
		defer store.Close()

		if err := store.Wipe(); err != nil {
			return err
		}
		fmt.Println("device wiped")
		return nil
	},
}

func init() {
	wipeCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "device storage directory")
	rootCmd.AddCommand(wipeCmd)
}
