package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/kost-manager/internal/models"
	"github.com/beesaferoot/kost-manager/internal/tenancy"
)

func NewTenantCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage the tenants of the active property",
	}
	cmd.AddCommand(tenantListCmd(opts), tenantAddCmd(opts), tenantEditCmd(opts), tenantRemoveCmd(opts))
	return cmd
}

func tenantListCmd(opts *RootOptions) *cobra.Command {
	var assignable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			rooms := make(map[string]models.Room)
			for _, r := range s.Registry.Rooms.Rooms() {
				rooms[r.ID] = r
			}
			list := s.Registry.Tenants.Tenants()
			if assignable {
				list = s.Registry.Tenants.AssignableTenants()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-36s  %-20s  %-14s  %-24s  %-8s  %-8s  %-8s  %-10s\n",
				"ID", "Name", "Phone", "Email", "Room", "Status", "Payment", "Ends")
			for _, t := range list {
				fmt.Fprintf(out, "%-36s  %-20s  %-14s  %-24s  %-8s  %-8s  %-8s  %-10s\n",
					t.ID, t.Name, t.Phone, orDash(&t.Email), roomNumber(rooms, t.RoomID),
					t.Status, t.PaymentStatus, formatDate(t.EndDate))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&assignable, "assignable", false, "only active tenants without a room")
	return cmd
}

// tenantFlags binds the editable tenant fields. Only flags the user set end
// up in the draft.
type tenantFlags struct {
	name, phone, email, room string
	start, end, lastPayment  string
	status, payment          string
}

func (f *tenantFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "full name")
	cmd.Flags().StringVar(&f.phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.room, "room", "", "room id (empty releases on edit)")
	cmd.Flags().StringVar(&f.start, "start", "", "lease start, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "lease end, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.lastPayment, "last-payment", "", "last payment date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.status, "status", "", "tenant status (active|inactive)")
	cmd.Flags().StringVar(&f.payment, "payment", "", "payment status (paid|pending|overdue)")
}

func (f *tenantFlags) draft(cmd *cobra.Command) (tenancy.TenantDraft, error) {
	var d tenancy.TenantDraft
	flags := cmd.Flags()
	if flags.Changed("name") {
		d.Name = &f.name
	}
	if flags.Changed("phone") {
		d.Phone = &f.phone
	}
	if flags.Changed("email") {
		d.Email = &f.email
	}
	if flags.Changed("room") {
		d.RoomID = &f.room
	}
	for _, df := range []struct {
		flag  string
		value string
		dst   **time.Time
	}{
		{"start", f.start, &d.StartDate},
		{"end", f.end, &d.EndDate},
		{"last-payment", f.lastPayment, &d.LastPaymentDate},
	} {
		if !flags.Changed(df.flag) {
			continue
		}
		t, err := parseDate(df.flag, df.value)
		if err != nil {
			return tenancy.TenantDraft{}, err
		}
		*df.dst = &t
	}
	if flags.Changed("status") {
		st := models.TenantStatus(f.status)
		d.Status = &st
	}
	if flags.Changed("payment") {
		ps := models.PaymentStatus(f.payment)
		d.PaymentStatus = &ps
	}
	return d, nil
}

func tenantAddCmd(opts *RootOptions) *cobra.Command {
	f := &tenantFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a tenant and assign a room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := f.draft(cmd)
			if err != nil {
				return err
			}
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			tenant, err := s.Forms.SubmitTenant(commandContext(cmd), draft, "")
			if tenant.ID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %s (%s)\n", tenant.Name, tenant.ID)
			}
			return err
		},
	}
	f.bind(cmd)
	return cmd
}

func tenantEditCmd(opts *RootOptions) *cobra.Command {
	f := &tenantFlags{}
	cmd := &cobra.Command{
		Use:   "edit <tenant-id>",
		Short: "Edit a tenant; --room moves or releases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := f.draft(cmd)
			if err != nil {
				return err
			}
			s, err := openScoped(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			tenant, err := s.Forms.SubmitTenant(commandContext(cmd), draft, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated tenant %s\n", tenant.Name)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func tenantRemoveCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <tenant-id>",
		Short: "Release the tenant's room and delete the tenant",
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
			if err := s.Registry.Engine.RemoveTenant(commandContext(cmd), scope, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed tenant %s\n", args[0])
			return nil
		},
	}
}
