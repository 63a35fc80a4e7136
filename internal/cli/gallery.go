package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List your newest images",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := loadAPIKey()
		if err != nil {
			return err
		}
		c := newClient(baseURL(cmd), key)

		items, err := c.gallery(cmd.Context())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("no images yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILENAME\tUPLOADED\tVIEWS\tURL")
		for _, it := range items {
			uploaded := time.Unix(it.CreatedAt, 0).Format("2006-01-02 15:04")
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", it.ID, it.Filename, uploaded, it.Views, it.URL)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(galleryCmd)
}
