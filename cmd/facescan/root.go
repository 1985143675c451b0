package main

import (
	"fmt"
	"path/filepath"

	"face-gallery/internal/app"
	"face-gallery/internal/logging"
	"face-gallery/internal/startup"

	"github.com/spf13/cobra"
)

type options struct {
	store   string
	db      string
	photos  string
	verbose bool

	cfg *startup.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "facescan",
		Short:         "Detect faces in a photo library and tag them",
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.verbose {
				logging.SetLevel(logging.LevelDebug)
			} else {
				logging.SetLevel(logging.LevelWarn)
			}
			return opts.load()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVar(&opts.store, "store", "", "media store: sqlite or postgres (default: STORE_DRIVER)")
	root.PersistentFlags().StringVar(&opts.db, "db", "", "SQLite database file, or PostgreSQL URL with --store postgres")
	root.PersistentFlags().StringVar(&opts.photos, "photos", "", "photo library root (default: PHOTO_DIR)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(opts),
		newIndexCmd(opts),
		newTagCmd(opts),
		newListCmd(opts),
	)
	return root
}

// load reads the environment and applies flag overrides.
func (o *options) load() error {
	cfg, err := startup.ReadEnv()
	if err != nil {
		return err
	}

	if o.store != "" {
		cfg.StoreDriver = o.store
	}
	if o.photos != "" {
		if cfg.PhotoDir, err = filepath.Abs(o.photos); err != nil {
			return fmt.Errorf("resolve --photos: %w", err)
		}
	}
	if o.db != "" {
		if cfg.StoreDriver == "postgres" {
			cfg.PostgresURL = o.db
		} else {
			cfg.DatabasePath = o.db
			cfg.DatabaseDir = filepath.Dir(o.db)
		}
	}

	o.cfg = cfg
	return nil
}

// openStores opens the stores without requiring detector settings.
func (o *options) openStores(cmd *cobra.Command) (*app.Stores, error) {
	switch o.cfg.StoreDriver {
	case "sqlite":
	case "postgres":
		if o.cfg.PostgresURL == "" {
			return nil, fmt.Errorf("--store postgres requires --db or POSTGRES_URL")
		}
	default:
		return nil, fmt.Errorf("unknown store %q", o.cfg.StoreDriver)
	}
	if err := ensureDir(o.cfg.DatabaseDir); err != nil {
		return nil, err
	}
	return app.OpenStores(cmd.Context(), o.cfg)
}
