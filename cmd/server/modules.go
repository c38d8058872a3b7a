package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/server"
	"github.com/GriffinCanCode/ScraperAPI/internal/service"
)

// modulesCmd represents the modules command
var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Discover modules and print the route table without serving",
	Long: `Runs module discovery exactly as the server would and prints one line per
route. Load errors under the fail policy exit non-zero, which makes this
command usable as a pre-deploy check.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		mods, err := server.LoadModules(cmd.Context(), cfg, logger, nil)
		if err != nil {
			return err
		}
		defer mods.Registry.Close()

		catalog := service.NewCatalog()
		mods.Registry.MirrorTo(catalog, logger)

		out := cmd.OutOrStdout()
		if mods.Registry.Len() == 0 {
			fmt.Fprintf(out, "No modules found in %s\n", cfg.Modules.Dir)
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROUTE\tKIND\tSOURCE\tTAGS\tDESCRIPTION")
		for _, e := range catalog.List("") {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Route, e.Kind, e.Source, strings.Join(e.Tags, ","), e.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
