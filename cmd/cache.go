package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	clearIndex int
	clearAll   bool
	clearYes   bool
)

// cacheCmd groups cache maintenance subcommands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or prune the simulation cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached simulation results, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, release, err := openStore()
		if err != nil {
			return err
		}
		defer release()
		if store == nil {
			return fmt.Errorf("caching is disabled (empty --cache-dir)")
		}
		entries, err := store.List()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tSIZE\tGEOMETRY\tRADIUS\tCONC(%)\tINTERACTION\tITERATIONS\tCREATED")
		var total int64
		for _, e := range entries {
			total += e.Size
			if e.Err != nil {
				fmt.Fprintf(w, "%d\t%s\t%s\t(unreadable: %v)\t\t\t\t\t\n", e.Index, e.Name, humanize.IBytes(uint64(e.Size)), e.Err)
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\t%g\t%s\t%d\t%s\n",
				e.Index, e.Name, humanize.IBytes(uint64(e.Size)), e.Key.Fingerprint, e.Key.Radius,
				e.Key.Concentration, e.Key.Interaction, e.Key.Iterations, e.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d entries, %s total\n", len(entries), humanize.IBytes(uint64(total)))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete one cached result by index, or all of them",
	RunE: func(cmd *cobra.Command, args []string) error {
		indexSet := cmd.Flags().Changed("index")
		if indexSet == clearAll {
			return fmt.Errorf("exactly one of --index or --all is required")
		}
		if !clearYes {
			return fmt.Errorf("refusing to delete without --yes")
		}
		store, release, err := openStore()
		if err != nil {
			return err
		}
		defer release()
		if store == nil {
			return fmt.Errorf("caching is disabled (empty --cache-dir)")
		}
		if clearAll {
			n, err := store.Clear()
			if err != nil {
				return err
			}
			logrus.Infof("removed %d cache entries", n)
			fmt.Printf("removed %d entries\n", n)
			return nil
		}
		if err := store.Delete(clearIndex); err != nil {
			return err
		}
		fmt.Printf("removed entry %d\n", clearIndex)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().IntVar(&clearIndex, "index", 0, "Index of the entry to delete, as shown by cache list")
	cacheClearCmd.Flags().BoolVar(&clearAll, "all", false, "Delete every entry")
	cacheClearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deletion")

	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
