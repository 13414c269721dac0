package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/config"
	"github.com/suPer8Hu/postcraft/internal/credential"
	"github.com/suPer8Hu/postcraft/internal/db"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "postcraft-admin",
		Short:        "Operational tasks for the postcraft backend",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCommand(), newGenKeyCommand(), newProvidersCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = config.Load().DBDSN
			}
			gdb, err := db.Connect(dsn)
			if err != nil {
				return err
			}
			if err := db.Migrate(gdb); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(db.Models()))
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (defaults to DB_DSN)")
	return cmd
}

func newGenKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-key",
		Short: "Print a fresh ENCRYPTION_KEY for stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := credential.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newProvidersCommand() *cobra.Command {
	var capability string
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the built-in AI providers, their models and credential keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := []ai.Capability{ai.CapabilityText, ai.CapabilityImage, ai.CapabilityVision}
			if capability != "" {
				c := ai.Capability(strings.ToLower(capability))
				if !c.Valid() {
					return fmt.Errorf("unknown capability %q", capability)
				}
				caps = []ai.Capability{c}
			}
			reg := ai.NewRegistry()
			ai.RegisterBuiltins(reg, ai.Options{})
			return printProviders(cmd.OutOrStdout(), reg, caps)
		},
	}
	cmd.Flags().StringVar(&capability, "capability", "", "text, image or vision")
	return cmd
}

func printProviders(out io.Writer, reg *ai.Registry, caps []ai.Capability) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CAPABILITY\tPROVIDER\tMODELS\tKEYS")
	for _, c := range caps {
		for _, d := range reg.Providers(c) {
			keys := strings.Join(d.CredentialKeys, ",")
			if keys == "" {
				keys = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c, d.Name, strings.Join(d.Models, ","), keys)
		}
	}
	return tw.Flush()
}
