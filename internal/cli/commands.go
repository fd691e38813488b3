package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pdxmph/contacts/internal/contacts"
	"github.com/pdxmph/contacts/internal/storage"
	"github.com/pdxmph/contacts/internal/validation"
)

// withStore opens the store for the duration of fn
func withStore(cmd *cobra.Command, s *session, fn func(ctx context.Context, store *contacts.Store) error) error {
	ctx := cmd.Context()
	store, closeFn, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, store)
}

func newInitCmd(s *session) *cobra.Command {
	var fixtures, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the storage, optionally seeded with sample contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if force {
				if err := resetStorage(cmd, s); err != nil {
					return err
				}
			}

			return withStore(cmd, s, func(ctx context.Context, store *contacts.Store) error {
				out := cmd.OutOrStdout()
				if !fixtures {
					fmt.Fprintf(out, "Storage ready (%s, %d contacts)\n", store.Backend().Name(), len(store.Contacts()))
					return nil
				}

				added, skipped := store.Import(ctx, contacts.Fixtures())
				for _, err := range skipped {
					s.log.Infow("fixture skipped", "error", err)
				}
				fmt.Fprintf(out, "Added %d sample contacts (%d already present)\n", len(added), len(skipped))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fixtures, "fixtures", false, "seed the address book with sample contacts")
	cmd.Flags().BoolVar(&force, "force", false, "discard the existing address book first")
	return cmd
}

// resetStorage removes the stored snapshot so the next open starts empty
func resetStorage(cmd *cobra.Command, s *session) error {
	name, err := storage.Resolve(s.cfg.Storage.Backend)
	if err != nil {
		return err
	}
	backend, err := storage.Open(name, storage.Options{Path: s.cfg.StoragePath(), Logger: s.log})
	if err != nil {
		return err
	}
	defer backend.Close()

	key := s.cfg.Storage.Key
	if key == "" {
		key = contacts.DefaultKey
	}
	if err := backend.Delete(cmd.Context(), key); err != nil {
		return fmt.Errorf("resetting storage: %w", err)
	}
	s.log.Infow("storage reset", "backend", name)
	return nil
}

type listOptions struct {
	favorites bool
	output    string
}

func newListCmd(s *session) *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List contacts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, s, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.favorites, "favorites", false, "only list favorites")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func runList(cmd *cobra.Command, s *session, opts listOptions) error {
	return withStore(cmd, s, func(_ context.Context, store *contacts.Store) error {
		list := store.Contacts()
		if opts.favorites {
			list = store.Favorites()
		}

		out := cmd.OutOrStdout()
		switch opts.output {
		case "json":
			return writeJSON(out, list)
		case "yaml":
			return writeYAML(out, list)
		case "table", "":
			return writeTable(out, store, list)
		default:
			return fmt.Errorf("unknown output format %q", opts.output)
		}
	})
}

func writeTable(w io.Writer, store *contacts.Store, list []contacts.Contact) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No contacts.")
		return err
	}

	rows := make([][]string, 0, len(list))
	for _, c := range list {
		fav := ""
		if store.IsFavorite(c.ID) {
			fav = "★"
		}
		rows = append(rows, []string{fav, c.FullName(), c.Email, c.PhoneNumber, c.ID})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "NAME", "EMAIL", "PHONE", "ID").
		Rows(rows...)

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// contactFlags binds one flag per form field
type contactFlags struct {
	in contacts.Input
}

func (f *contactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in.Name, "name", "", "first name")
	cmd.Flags().StringVar(&f.in.Surname, "surname", "", "last name")
	cmd.Flags().StringVar(&f.in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&f.in.PhoneNumber, "phone", "", "phone number (e.g. 912 345 678)")
}

// apply overwrites the fields of in whose flags were set
func (f *contactFlags) apply(cmd *cobra.Command, in contacts.Input) contacts.Input {
	if cmd.Flags().Changed("name") {
		in.Name = f.in.Name
	}
	if cmd.Flags().Changed("surname") {
		in.Surname = f.in.Surname
	}
	if cmd.Flags().Changed("email") {
		in.Email = f.in.Email
	}
	if cmd.Flags().Changed("phone") {
		in.PhoneNumber = f.in.PhoneNumber
	}
	return in
}

func (f *contactFlags) anySet(cmd *cobra.Command) bool {
	for _, name := range []string{"name", "surname", "email", "phone"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func newAddCmd(s *session) *cobra.Command {
	var flags contactFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact",
		Long: `Add a contact from flags. On a terminal, running add without flags
opens an interactive form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := flags.in
			if !flags.anySet(cmd) && isTerminal() {
				if err := promptContact(&in, "New contact"); err != nil {
					return err
				}
			}

			return withStore(cmd, s, func(ctx context.Context, store *contacts.Store) error {
				c, err := store.Add(ctx, in)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", c.FullName(), c.ID)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newEditCmd(s *session) *cobra.Command {
	var flags contactFlags

	cmd := &cobra.Command{
		Use:   "edit <id|email>",
		Short: "Edit a contact",
		Long: `Change the fields given as flags. On a terminal, running edit without
flags opens an interactive form prefilled with the contact.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, s, func(ctx context.Context, store *contacts.Store) error {
				c, err := store.Resolve(args[0])
				if err != nil {
					return err
				}

				in := flags.apply(cmd, contacts.InputFrom(c))
				if !flags.anySet(cmd) {
					if !isTerminal() {
						return errors.New("nothing to change: pass --name, --surname, --email or --phone")
					}
					if err := promptContact(&in, "Edit "+c.FullName()); err != nil {
						return err
					}
				}

				updated, err := store.Update(ctx, c.ID, in)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", updated.FullName())
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newDeleteCmd(s *session) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id|email>...",
		Aliases: []string{"rm"},
		Short:   "Delete contacts",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, s, func(ctx context.Context, store *contacts.Store) error {
				targets := make([]contacts.Contact, 0, len(args))
				seen := make(map[string]bool, len(args))
				for _, ref := range args {
					c, err := store.Resolve(ref)
					if err != nil {
						return err
					}
					if seen[c.ID] {
						continue
					}
					seen[c.ID] = true
					targets = append(targets, c)
				}

				if !yes && s.cfg.UI.ConfirmDelete && isTerminal() {
					ok, err := confirmDelete(targets)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled")
						return nil
					}
				}

				out := cmd.OutOrStdout()
				for _, c := range targets {
					if err := store.Delete(ctx, c.ID); err != nil {
						return err
					}
					fmt.Fprintf(out, "Deleted %s\n", c.FullName())
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newFavoriteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "favorite <id|email>",
		Aliases: []string{"fav"},
		Short:   "Toggle a contact's favorite mark",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, s, func(ctx context.Context, store *contacts.Store) error {
				c, err := store.Resolve(args[0])
				if err != nil {
					return err
				}
				on, err := store.ToggleFavorite(ctx, c.ID)
				if err != nil {
					return err
				}
				if on {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is now a favorite\n", c.FullName())
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer a favorite\n", c.FullName())
				}
				return nil
			})
		},
	}
}

// describe turns store errors into messages for the terminal
func describe(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, f := range validation.Contact.Fields() {
			if msg, ok := verrs[f.Name]; ok {
				msgs = append(msgs, msg)
			}
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}
