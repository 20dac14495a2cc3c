package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/tenancy"
)

func NewRoomCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Manage the rooms of the active property",
	}
	cmd.AddCommand(roomListCmd(opts), roomAddCmd(opts), roomEditCmd(opts), roomMaintenanceCmd(opts))
	return cmd
}

func roomListCmd(opts *RootOptions) *cobra.Command {
	var status, query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			filter := tenancy.RoomFilter{Query: query}
			if status != "" {
				st := models.RoomStatus(status)
				filter.Status = &st
			}
			tenants := make(map[string]models.Tenant)
			for _, t := range s.Registry.Tenants.Tenants() {
				tenants[t.ID] = t
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-36s  %-8s  %-8s  %-12s  %-14s  %-11s  %-20s  %s\n",
				"ID", "Number", "Floor", "Type", "Price", "Status", "Tenant", "Facilities")
			for _, r := range s.Registry.Rooms.Filter(filter) {
				fmt.Fprintf(out, "%-36s  %-8s  %-8s  %-12s  %-14s  %-11s  %-20s  %s\n",
					r.ID, r.Number, r.Floor, r.Type.Label(), formatRupiah(r.Price), r.Status,
					tenantName(tenants, r.TenantID), strings.Join(r.Facilities, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only rooms with this status (vacant|occupied|maintenance)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "match room number or floor")
	return cmd
}

// roomFlags binds the editable room fields. Only flags the user set end up in
// the draft.
type roomFlags struct {
	number, floor, roomType, status string
	price                           int64
	facilities                      []string
}

func (f *roomFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.number, "number", "", "room number")
	cmd.Flags().StringVar(&f.floor, "floor", "", "floor")
	cmd.Flags().StringVar(&f.roomType, "type", "", "room type (single|double|deluxe)")
	cmd.Flags().Int64Var(&f.price, "price", 0, "monthly price in rupiah")
	cmd.Flags().StringSliceVar(&f.facilities, "facility", nil, "facility, repeatable")
	cmd.Flags().StringVar(&f.status, "status", "", "initial status (vacant|maintenance)")
}

func (f *roomFlags) draft(cmd *cobra.Command) tenancy.RoomDraft {
	var d tenancy.RoomDraft
	flags := cmd.Flags()
	if flags.Changed("number") {
		d.Number = &f.number
	}
	if flags.Changed("floor") {
		d.Floor = &f.floor
	}
	if flags.Changed("type") {
		t := models.RoomType(f.roomType)
		d.Type = &t
	}
	if flags.Changed("price") {
		d.Price = &f.price
	}
	if flags.Changed("facility") {
		d.Facilities = append([]string{}, f.facilities...)
	}
	if flags.Changed("status") {
		st := models.RoomStatus(f.status)
		d.Status = &st
	}
	return d
}

func roomAddCmd(opts *RootOptions) *cobra.Command {
	f := &roomFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			room, err := s.Forms.SubmitRoom(commandContext(cmd), f.draft(cmd), "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created room %s (%s)\n", room.Number, room.ID)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func roomEditCmd(opts *RootOptions) *cobra.Command {
	f := &roomFlags{}
	cmd := &cobra.Command{
		Use:   "edit <room-id>",
		Short: "Edit a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			room, err := s.Forms.SubmitRoom(commandContext(cmd), f.draft(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated room %s\n", room.Number)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func roomMaintenanceCmd(opts *RootOptions) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "maintenance <room-id>",
		Short: "Put a vacant room under maintenance, or back with --off",
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
			room, err := s.Registry.Engine.SetMaintenance(commandContext(cmd), scope, args[0], !off)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Room %s is %s\n", room.Number, room.Status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "end maintenance")
	return cmd
}
