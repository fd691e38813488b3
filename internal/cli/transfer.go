package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pdxmph/contacts/internal/contacts"
)

// exportDoc is the export file layout. Favorites are listed by email so
// the file stays meaningful after ids are reassigned on import.
type exportDoc struct {
	Contacts  []contacts.Contact `json:"contacts" yaml:"contacts"`
	Favorites []string           `json:"favorites" yaml:"favorites"`
}

// importDoc reads an export file, or any file with the same fields
type importDoc struct {
	Contacts  []contacts.Input `json:"contacts" yaml:"contacts"`
	Favorites []string         `json:"favorites" yaml:"favorites"`
}

func newExportCmd(s *session) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all contacts as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && !cmd.Flags().Changed("format") {
				format = formatFor(output)
			}
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown export format %q", format)
			}

			return withStore(cmd, s, func(_ context.Context, store *contacts.Store) error {
				doc := exportDoc{Contacts: store.Contacts(), Favorites: []string{}}
				for _, c := range store.Favorites() {
					doc.Favorites = append(doc.Favorites, c.Email)
				}

				w := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating export file: %w", err)
					}
					defer f.Close()
					w = f
				}

				if format == "yaml" {
					return writeYAML(w, doc)
				}
				return writeJSON(w, doc)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Add the contacts from an export file",
		Long: `Add the contacts from a JSON or YAML export file. Entries that fail
validation or reuse an existing email are skipped and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readImport(args[0])
			if err != nil {
				return err
			}

			return withStore(cmd, s, func(ctx context.Context, store *contacts.Store) error {
				added, skipped := store.Import(ctx, doc.Contacts)

				favorite := make(map[string]bool, len(doc.Favorites))
				for _, email := range doc.Favorites {
					favorite[strings.ToLower(strings.TrimSpace(email))] = true
				}
				for _, c := range added {
					if !favorite[strings.ToLower(c.Email)] {
						continue
					}
					if _, err := store.ToggleFavorite(ctx, c.ID); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				for _, err := range skipped {
					fmt.Fprintf(out, "skipped %v\n", err)
				}
				fmt.Fprintf(out, "Imported %d contacts\n", len(added))
				return nil
			})
		},
	}
}

func readImport(path string) (importDoc, error) {
	var doc importDoc

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading import file: %w", err)
	}

	if formatFor(path) == "yaml" {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return doc, fmt.Errorf("parsing import file: %w", err)
	}
	return doc, nil
}

// formatFor picks the format from a file extension
func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
