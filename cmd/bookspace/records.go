package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/bookspace/internal/application/handlers"
	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/infrastructure/parsers"
)

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage the records of a collection",
		Long: "Lists and edits records. Collections: " + strings.Join(entities.CollectionNames, ", ") + ".\n" +
			"Every change is saved locally and recorded in the activity log.",
	}

	cmd.AddCommand(
		newRecordsListCmd(),
		newRecordsPutCmd(),
		newRecordsDeleteCmd(),
		newRecordsImportCmd(),
	)

	return cmd
}

func newRecordsListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list COLLECTION",
		Short: "List the records of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				records, err := d.Records.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(os.Stdout, records)
				}
				displayRecords(os.Stdout, args[0], records)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the records as a JSON array")

	return cmd
}

type putFlags struct {
	data string
	file string
}

func newRecordsPutCmd() *cobra.Command {
	var flags putFlags

	cmd := &cobra.Command{
		Use:   "put COLLECTION",
		Short: "Create or replace a record",
		Long: "Stores a record given as a JSON object. A record without an id gets a new one; " +
			"a record whose id exists replaces it. Reads stdin when neither --data nor --file is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readRecordInput(cmd.InOrStdin(), flags)
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				res, err := d.Records.Put(cmd.Context(), args[0], rec)
				if err != nil {
					return err
				}
				verb := "Updated"
				if res.Created {
					verb = "Created"
				}
				fmt.Printf("%s %s/%s (%s)\n", verb, args[0], res.Record.ID(), res.Activity.Label())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "Record as a JSON object")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "File containing the record as a JSON object")

	return cmd
}

// readRecordInput decodes the record from --data, --file or stdin.
func readRecordInput(stdin io.Reader, flags putFlags) (entities.Record, error) {
	switch {
	case flags.data != "" && flags.file != "":
		return nil, fmt.Errorf("use either --data or --file, not both")
	case flags.data != "":
		return parsers.ParseObject(strings.NewReader(flags.data))
	case flags.file != "":
		f, err := os.Open(flags.file)
		if err != nil {
			return nil, fmt.Errorf("opening file: %w", err)
		}
		defer f.Close()
		return parsers.ParseObject(f)
	default:
		return parsers.ParseObject(stdin)
	}
}

func newRecordsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete COLLECTION ID",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id := args[0], args[1]
			if !force && !confirmAction(fmt.Sprintf("Delete %s/%s?", collection, id)) {
				fmt.Println("Cancelled.")
				return nil
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				if err := d.Records.Delete(cmd.Context(), collection, id); err != nil {
					return err
				}
				fmt.Printf("Deleted %s/%s\n", collection, id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func newRecordsImportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import COLLECTION FILE",
		Short: "Import records from a JSON or CSV file",
		Long: "Adds or replaces records from a JSON array of objects or a CSV file with a header row. " +
			"Records are matched by id; rows without an id are added.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, format) {
				return fmt.Errorf("invalid format %q, valid formats: %v", format, validFormats)
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				res, err := d.Records.Import(cmd.Context(), args[0], args[1], handlers.ImportOptions{Format: format})
				if err != nil {
					return err
				}
				fmt.Printf("Imported %s: %d created, %d updated\n", args[1], res.Created, res.Updated)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "Input format: auto, json or csv")

	return cmd
}

func displayRecords(w io.Writer, collection string, records []entities.Record) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No %s.\n", collection)
		return
	}

	fmt.Fprintf(w, "%d %s:\n\n", len(records), collection)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(w, "%s  <unprintable: %v>\n", rec.ID(), err)
			continue
		}
		fmt.Fprintf(w, "%s  %s\n", rec.ID(), data)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
