// Package commands implements the kost CLI.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/kost-manager/internal/config"
	"github.com/beesaferoot/kost-manager/internal/logging"
	"github.com/beesaferoot/kost-manager/internal/session"
)

const appName = "kost"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	PropertyID string
}

// NewRootCommand creates the root command for the kost CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Boarding-house room and tenant management",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultConfigFile, "path to the YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.PropertyID, "property", "p", "", "property id (overrides PROPERTY_ID)")

	cmd.AddCommand(
		NewMigrateCommand(opts),
		NewPropertyCommand(opts),
		NewRoomCommand(opts),
		NewTenantCommand(opts),
		NewAssignCommand(opts),
		NewReleaseCommand(opts),
		NewReconcileCommand(opts),
	)
	return cmd
}

// openSession loads the configuration and opens a session for cmd. The
// caller closes it.
func openSession(cmd *cobra.Command, opts *RootOptions, sessOpts session.Options) (*session.Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.PropertyID != "" {
		cfg.PropertyID = opts.PropertyID
	}
	log := logging.NewWithOutput(appName, cfg.Logging.Level, cmd.ErrOrStderr())
	return session.Open(commandContext(cmd), cfg, log, sessOpts)
}

// openScoped opens a session and requires an active property.
func openScoped(cmd *cobra.Command, opts *RootOptions) (*session.Session, error) {
	s, err := openSession(cmd, opts, session.Options{})
	if err != nil {
		return nil, err
	}
	if _, err := s.Scope(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.Refresh(commandContext(cmd)); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
