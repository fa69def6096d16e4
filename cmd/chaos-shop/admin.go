package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fjod/chaos-shop/internal/faults"
	"github.com/spf13/cobra"
)

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the order database and catalog migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openOrderStore(c.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			// the catalog is migrated without its seed fixture
			cfg := *c.cfg
			cfg.Catalog.SeedFile = ""
			catalogRepo, err := openCatalog(cmd.Context(), &cfg, faults.NewRegistry(repo))
			if err != nil {
				return err
			}
			defer catalogRepo.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func seedCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [file]",
		Short: "Load products and images from a YAML fixture into the catalog",
		Long: `Load products and images from a YAML fixture into the catalog.

Products whose name already exists are skipped, so the command can be
re-run safely. The file argument overrides catalog.seed_file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Catalog.SeedFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no seed file: pass one or set catalog.seed_file")
			}

			cfg := *c.cfg
			cfg.Catalog.SeedFile = path
			// the flags table is not needed here; every fault reads as off
			catalogRepo, err := openCatalog(cmd.Context(), &cfg, noFaults{})
			if err != nil {
				return err
			}
			defer catalogRepo.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "seeded catalog from %s\n", path)
			return nil
		},
	}
	return cmd
}

func chaosCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaos",
		Short: "Inspect or toggle fault flags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every recognized flag and its value",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openOrderStore(c.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			flags, err := faults.NewRegistry(repo).Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(flags))
			for name := range flags {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", name, onOff(flags[name]))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <flag> <on|off>",
		Short:     "Enable or disable one flag",
		Args:      cobra.ExactArgs(2),
		ValidArgs: faults.Known,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !faults.IsKnown(name) {
				return fmt.Errorf("unknown flag %q (known: %s)", name, strings.Join(faults.Known, ", "))
			}
			enabled, err := parseSwitch(args[1])
			if err != nil {
				return err
			}

			repo, err := openOrderStore(c.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := faults.NewRegistry(repo).SetFlag(cmd.Context(), name, enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, onOff(enabled))
			return nil
		},
	})

	return cmd
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "enable", "enabled":
		return true, nil
	case "off", "disable", "disabled":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid switch %q: want on or off", s)
	}
	return b, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
