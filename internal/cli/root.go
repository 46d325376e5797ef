package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dmfeed/pkg/blob"
	"dmfeed/pkg/logger"
	"dmfeed/pkg/state"
	"dmfeed/pkg/store"
)

var (
	version = "dev"
	commit  = "unknown"
)

// ConfigEnv names the config file when --config is not given.
const ConfigEnv = "DMCTL_CONFIG"

// options carries the global flags and the resolved config.
type options struct {
	configPath string
	db         string
	identity   string
	verbose    bool
	cfg        *Config
}

// NewRootCmd builds the dmctl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "dmctl",
		Short: "dmctl drives a dmfeed database from the terminal",
		Long: `dmctl opens a dmfeed database directly and drives the message feed
against it: tail a conversation live, send and edit messages, page
through history and inspect raw keys. The server must not hold the
database while dmctl runs.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.resolve(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	// Disable completion command
	root.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file path (default is $HOME/.dmctl.yaml)")
	root.PersistentFlags().StringVar(&o.db, "db", "", "database path")
	root.PersistentFlags().StringVar(&o.identity, "as", "", "user id to act as")

	root.AddCommand(
		newTailCmd(o),
		newSendCmd(o),
		newEditCmd(o),
		newDeleteCmd(o),
		newTokenCmd(o),
		newHistoryCmd(o),
		newConversationsCmd(o),
		newInspectCmd(o),
		newSweepCmd(o),
		newConfigCmd(o),
	)
	return root
}

// Execute runs dmctl. It is called by main.main.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolve merges the config file under the flags.
func (o *options) resolve(cmd *cobra.Command) error {
	level := "error"
	if o.verbose {
		level = "debug"
	}
	logger.InitWriter(cmd.ErrOrStderr(), level)

	explicit := o.configPath != ""
	path := o.configPath
	if !explicit {
		if p := os.Getenv(ConfigEnv); p != "" {
			path, explicit = p, true
		} else {
			path = DefaultConfigPath()
		}
	}
	cfg, err := loadOptional(path, explicit)
	if err != nil {
		return err
	}
	if o.db != "" {
		cfg.DBPath = o.db
	}
	if o.identity != "" {
		cfg.Identity = o.identity
	}
	if cfg.DBPath == "" {
		cfg.DBPath = state.DefaultDBPath
	}
	o.cfg = cfg
	return nil
}

func (o *options) requireIdentity() (string, error) {
	id := strings.TrimSpace(o.cfg.Identity)
	if id == "" {
		return "", fmt.Errorf("no identity: pass --as or set identity in the config file")
	}
	return id, nil
}

// session is an open database.
type session struct {
	store *store.Store
	blobs *blob.Store
}

func (o *options) open() (*session, error) {
	db := o.cfg.DBPath
	if err := state.EnsureStateDirs(db); err != nil {
		return nil, err
	}
	st, err := store.Open(state.StorePath(db), store.Options{})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", db, err)
	}
	bl, err := blob.Open(state.BlobsPath(db), 0)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open blobs at %s: %w", db, err)
	}
	return &session{store: st, blobs: bl}, nil
}

func (s *session) Close() {
	_ = s.store.Close()
	_ = s.blobs.Close()
}
