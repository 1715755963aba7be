// Package runtime wires the storage backend, services and output for one
// CLI invocation.
package runtime

import (
	"context"
	"fmt"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/output"
	"github.com/manav03panchal/medremind/internal/storage"
	"github.com/manav03panchal/medremind/internal/storage/postgres"
)

// MemoryPath selects an in-memory badger store.
const MemoryPath = ":memory:"

// Context holds the application runtime context.
type Context struct {
	Store       storage.Store
	Formatter   *output.Formatter
	Medications *medication.Service

	// UserID is the user CLI commands act for.
	UserID string

	// Debug mode
	Debug bool
}

// Options configures the runtime context.
type Options struct {
	Backend   string
	DBPath    string
	DSN       string
	InMemory  bool
	Format    output.Format
	ColorMode output.ColorMode
	UserID    string
	Debug     bool
}

// DefaultOptions returns runtime options from the global configuration.
func DefaultOptions() Options {
	path := config.Global.Storage.Path
	if path == "" {
		path = storage.DefaultPath()
	}
	return Options{
		Backend:   config.Global.Storage.Backend,
		DBPath:    path,
		DSN:       config.Global.Storage.DSN,
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
	}
}

// OpenStore opens the storage backend selected by opts.
func OpenStore(ctx context.Context, opts Options) (storage.Store, error) {
	switch opts.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, opts.DSN)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return db, nil
	case config.BackendBadger, "":
		if opts.DBPath == MemoryPath {
			opts.InMemory = true
		}
		db, err := storage.Open(storage.Options{
			Path:     opts.DBPath,
			InMemory: opts.InMemory,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// New opens the store and builds the services. Events emitted by the
// services are discarded; only the daemon has live subscribers.
func New(opts Options) (*Context, error) {
	store, err := OpenStore(context.Background(), opts)
	if err != nil {
		return nil, err
	}

	formatter := output.NewFormatter()
	formatter.Format = opts.Format
	formatter.ColorMode = opts.ColorMode

	return &Context{
		Store:       store,
		Formatter:   formatter,
		Medications: medication.NewService(store, nil),
		UserID:      opts.UserID,
		Debug:       opts.Debug,
	}, nil
}

// Close closes the runtime context.
func (c *Context) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}

// RequireUser returns the configured user id or a user error.
func (c *Context) RequireUser() (string, error) {
	if c.UserID == "" {
		return "", errors.Invalid(errors.ErrUserRequired, "user", "")
	}
	return c.UserID, nil
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Formatter.Format == output.FormatJSON
}

// Debugf prints debug output if debug mode is enabled.
func (c *Context) Debugf(format string, args ...any) {
	if c.Debug {
		c.Formatter.Printf("[DEBUG] "+format+"\n", args...)
	}
}
