package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewAssignCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <room-id> <tenant-id>",
		Short: "Assign a vacant room to a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			scope, err := s.Scope()
			if err != nil {
				return err
			}
			a, err := s.Registry.Engine.Assign(commandContext(cmd), scope, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Room %s assigned to %s\n", a.Room.Number, a.Tenant.Name)
			return nil
		},
	}
}

func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <room-id>",
		Short: "Vacate a room and unlink its tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			scope, err := s.Scope()
			if err != nil {
				return err
			}
			a, err := s.Registry.Engine.Release(commandContext(cmd), scope, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Room %s released from %s\n", a.Room.Number, a.Tenant.Name)
			return nil
		},
	}
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <room-id>",
		Short: "Repair a room left half-assigned by a failed rollback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			scope, err := s.Scope()
			if err != nil {
				return err
			}
			res, err := s.Registry.Engine.Reconcile(commandContext(cmd), scope, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res.Repaired) == 0 {
				fmt.Fprintf(out, "Room %s is consistent\n", res.Room.Number)
				return nil
			}
			for _, ref := range res.Repaired {
				fmt.Fprintf(out, "Repaired %s\n", ref)
			}
			return nil
		},
	}
}
