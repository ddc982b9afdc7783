package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/internal/feedback"
	"github.com/karanmishra2003/HoloHire/internal/report"
	"github.com/karanmishra2003/HoloHire/internal/store"
)

func newExportCmd(load func() (*config.Config, error)) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <interview-id>",
		Short: "Export an interview and its feedback as an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Store.PostgresDSN == "" {
				return errNoDSN
			}
			st, err := store.Open(cmd.Context(), cfg.Store.PostgresDSN)
			if err != nil {
				return err
			}
			defer st.Close()

			iv, err := st.GetInterview(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load interview %s: %w", args[0], err)
			}
			rep, err := feedback.Decode(iv.Feedback)
			if err != nil {
				return err
			}

			if out == "" {
				out = "interview-" + iv.ID + ".xlsx"
			}
			if out == "-" {
				return report.Write(cmd.OutOrStdout(), iv, rep)
			}
			return writeReportFile(out, iv, rep)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", `output file ("-" for stdout)`)
	return cmd
}

func writeReportFile(path string, iv store.Interview, rep *feedback.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return report.Write(f, iv, rep)
}
