package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the dataset with a JSON backup",
		Long: "Reads a backup written by 'bookspace export' (use - for stdin) and replaces the local dataset " +
			"with it. Nothing is merged; the next sync uploads the imported data.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmAction("Replace all local data with "+args[0]+"?") {
				fmt.Println("Cancelled.")
				return nil
			}

			in, closeIn, err := openInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			return withDeps(cmd.Context(), func(d *Deps) error {
				res, err := d.Import.Handle(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d records\n", res.Records)
				for _, collection := range sortedKeys(res.Duplicates) {
					fmt.Printf("  warning: duplicate ids in %s: %s\n", collection, strings.Join(res.Duplicates[collection], ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// openInput opens path, or returns stdin for "-".
func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
