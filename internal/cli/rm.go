package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <image-id>...",
	Short: "Delete images you own",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := loadAPIKey()
		if err != nil {
			return err
		}
		c := newClient(baseURL(cmd), key)

		for _, iid := range args {
			if err := c.deleteImage(cmd.Context(), iid); err != nil {
				return fmt.Errorf("%s: %w", iid, err)
			}
			fmt.Printf("[ok] deleted %s\n", iid)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
