package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/kost-manager/internal/session"
)

func NewPropertyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "property",
		Short: "List, add and select properties",
	}
	cmd.AddCommand(propertyListCmd(opts), propertyAddCmd(opts), propertySelectCmd(opts))
	return cmd
}

func propertyListCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List properties, the active one marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, session.Options{})
			if err != nil {
				return err
			}
			defer s.Close()

			current, _ := s.Selection.CurrentPropertyID()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  %-36s  %-30s  %s\n", "ID", "Name", "Address")
			for _, p := range s.Selection.Properties() {
				mark := " "
				if p.ID == current {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-36s  %-30s  %s\n", mark, p.ID, p.Name, p.Address)
			}
			return nil
		},
	}
}

func propertyAddCmd(opts *RootOptions) *cobra.Command {
	var name, address string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a property",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, session.Options{})
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Selection.Create(commandContext(cmd), name, address)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created property %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "property name")
	cmd.Flags().StringVar(&address, "address", "", "property address")
	return cmd
}

func propertySelectCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Check a property id and print how to make it the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, session.Options{})
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SelectProperty(commandContext(cmd), args[0]); err != nil {
				return err
			}
			p, _ := s.Selection.Current()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Selected %s: %d rooms, %d tenants\n", p.Name, len(s.Registry.Rooms.Rooms()), len(s.Registry.Tenants.Tenants()))
			fmt.Fprintf(out, "export PROPERTY_ID=%s\n", p.ID)
			return nil
		},
	}
}
