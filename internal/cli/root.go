// Package cli implements the contacts command line. Without a subcommand
// it runs the terminal UI when attached to a terminal and prints the
// contact list otherwise.
package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdxmph/contacts/internal/config"
	"github.com/pdxmph/contacts/internal/contacts"
	"github.com/pdxmph/contacts/internal/logging"
	"github.com/pdxmph/contacts/internal/storage"
	"github.com/pdxmph/contacts/internal/tui"

	// Register storage backends
	_ "github.com/pdxmph/contacts/internal/storage/badger"
	_ "github.com/pdxmph/contacts/internal/storage/jsonfile"
	_ "github.com/pdxmph/contacts/internal/storage/sqlite"
)

// isTerminal reports whether both stdin and stdout are interactive
var isTerminal = func() bool {
	for _, fd := range []uintptr{os.Stdin.Fd(), os.Stdout.Fd()} {
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return false
		}
	}
	return true
}

// session carries the flags and resources shared by every subcommand
type session struct {
	configPath string
	backend    string
	path       string

	cfg *config.Config
	log *zap.SugaredLogger
}

// NewRootCommand builds the contacts command tree
func NewRootCommand() *cobra.Command {
	s := &session{}

	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage an address book from the terminal",
		Long: `contacts keeps a local address book. Run it without arguments for the
interactive interface, or use the subcommands for scripting.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if s.log != nil {
				_ = s.log.Sync()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal() {
				return runList(cmd, s, listOptions{output: "table"})
			}
			return s.runTUI(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&s.configPath, "config", "", "config file (default "+config.Path()+")")
	cmd.PersistentFlags().StringVar(&s.backend, "backend", "", "storage backend: "+fmt.Sprint(storage.ListBackends()))
	cmd.PersistentFlags().StringVar(&s.path, "path", "", "storage file or directory")

	cmd.AddCommand(
		newInitCmd(s),
		newListCmd(s),
		newAddCmd(s),
		newEditCmd(s),
		newDeleteCmd(s),
		newFavoriteCmd(s),
		newExportCmd(s),
		newImportCmd(s),
		newConfigCmd(s),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// load reads the config file and applies flag overrides
func (s *session) load() error {
	var cfg *config.Config
	var err error
	if s.configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(s.configPath)
	}
	if err != nil {
		return err
	}
	if s.backend != "" {
		cfg.Storage.Backend = s.backend
		// A backend chosen on the command line gets its own default path
		if s.path == "" {
			cfg.Storage.Path = ""
		}
	}
	if s.path != "" {
		cfg.Storage.Path = s.path
	}

	log, err := logging.New(logging.Config{Path: cfg.Log.Path, Level: cfg.Log.Level})
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.log = log
	return nil
}

// openStore opens the configured backend and loads the contacts. The
// returned func closes the backend.
func (s *session) openStore(ctx context.Context) (*contacts.Store, func(), error) {
	name, err := storage.Resolve(s.cfg.Storage.Backend)
	if err != nil {
		return nil, nil, err
	}

	backend, err := storage.Open(name, storage.Options{
		Path:   s.cfg.StoragePath(),
		Logger: s.log,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := backend.Close(); err != nil {
			s.log.Warnw("closing storage", "backend", name, "error", err)
		}
	}

	opts := []contacts.Option{contacts.WithLogger(s.log)}
	if s.cfg.Storage.Key != "" {
		opts = append(opts, contacts.WithKey(s.cfg.Storage.Key))
	}
	store, err := contacts.Open(ctx, backend, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	s.log.Debugw("storage opened", "backend", name, "path", s.cfg.StoragePath())
	return store, closeFn, nil
}

func (s *session) runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, closeFn, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	model, err := tui.New(ctx, store, tui.Options{
		ConfirmDelete: s.cfg.UI.ConfirmDelete,
		Logger:        s.log,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}
