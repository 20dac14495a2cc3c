package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/kost-manager/internal/session"
	"github.com/beesaferoot/kost-manager/migration/driver"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateUpCmd(opts),
		migrateDownCmd(opts),
		migrateStatusCmd(opts),
		migrateHistoryCmd(opts),
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, opts *RootOptions, fn func(*driver.Migrator) error) error {
	s, err := openSession(cmd, opts, session.Options{SkipLoad: true})
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := s.Migrator()
	if err != nil {
		return err
	}
	return fn(m)
}

func migrateUpCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m *driver.Migrator) error {
				applied, err := m.Up(commandContext(cmd))
				for _, mg := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s %s\n", mg.Version, mg.Name)
				}
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations")
				}
				return nil
			})
		},
	}
}

func migrateDownCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert the last applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m *driver.Migrator) error {
				reverted, err := m.Down(commandContext(cmd))
				if errors.Is(err, driver.ErrNothingToRevert) {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations to revert")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reverted %s %s\n", reverted.Version, reverted.Name)
				return nil
			})
		},
	}
}

func migrateStatusCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m *driver.Migrator) error {
				statuses, err := m.Status(commandContext(cmd))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-16s  %-30s  %-8s\n", "Version", "Name", "Status")
				for _, st := range statuses {
					status := "Pending"
					if st.Applied {
						status = "Applied"
					}
					fmt.Fprintf(out, "%-16s  %-30s  %-8s\n", st.Version, st.Name, status)
				}
				return nil
			})
		},
	}
}

func migrateHistoryCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show applied migrations in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, opts, func(m *driver.Migrator) error {
				records, err := m.History(commandContext(cmd))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-16s  %-30s  %-20s\n", "Version", "Name", "Applied At")
				for _, r := range records {
					fmt.Fprintf(out, "%-16s  %-30s  %-20s\n", r.Version, r.Name, r.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}
