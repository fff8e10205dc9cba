package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/bookspace/internal/application/handlers"
)

func newExportCmd() *cobra.Command {
	var opts handlers.ExportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dataset as a JSON backup",
		Long: "Writes every collection and the settings as a JSON backup document. " +
			"The default file name is bookspace-backup-YYYY-MM-DD.json; use -o - for stdout. " +
			"With --s3 the backup is also uploaded to the configured bucket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				res, err := d.Export.Handle(cmd.Context(), os.Stdout, opts)
				if err != nil {
					return err
				}
				// Keep stdout clean for the document itself.
				if opts.Path == handlers.StdoutPath {
					fmt.Fprintf(os.Stderr, "Exported %d records\n", res.Records)
				} else {
					fmt.Printf("Exported %d records to %s\n", res.Records, res.Path)
				}
				if res.Location != "" {
					fmt.Fprintf(os.Stderr, "Uploaded to %s\n", res.Location)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "output", "o", "", "Output file (default: dated file name, - for stdout)")
	cmd.Flags().BoolVar(&opts.Upload, "s3", false, "Also upload the backup to S3")

	return cmd
}
