package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/internal/store"
)

var errNoDSN = errors.New("store.postgres_dsn is not configured")

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		dsn    string
		status bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				cfg, err := load()
				if err != nil {
					return err
				}
				dsn = cfg.Store.PostgresDSN
			}
			if dsn == "" {
				return errNoDSN
			}

			if status {
				st, err := store.Status(cmd.Context(), dsn)
				if err != nil {
					return err
				}
				return printMigrationStatus(cmd.OutOrStdout(), st)
			}
			v, err := store.Migrate(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres DSN (overrides store.postgres_dsn)")
	cmd.Flags().BoolVar(&status, "status", false, "list migrations instead of applying them")
	return cmd
}

func printMigrationStatus(w io.Writer, st []store.MigrationStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tFILE")
	for _, s := range st {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, state, s.Path)
	}
	return tw.Flush()
}
