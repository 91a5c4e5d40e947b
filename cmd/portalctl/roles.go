package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"seaprocure/internal/roles"
)

func newRolesCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Edit portal roles and permissions (tech portal)",
	}

	// editor loads the roles of portal through the API.
	editor := func(cmd *cobra.Command, portal string) (*env, *roles.Editor, error) {
		e, err := o.env()
		if err != nil {
			return nil, nil, err
		}
		ed := roles.NewEditor(portal, e.client)
		if err := ed.Load(cmd.Context()); err != nil {
			return nil, nil, err
		}
		return e, ed, nil
	}

	list := &cobra.Command{
		Use:   "list <portal>",
		Short: "List roles of a portal and their permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ed, err := editor(cmd, args[0])
			if err != nil {
				return err
			}
			perms := roles.Permissions(args[0])
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ROLE\t%s\n", strings.Join(perms, "\t"))
			for _, r := range ed.Roles() {
				row := []string{r.Name}
				for _, p := range perms {
					mark := "-"
					if r.Permissions[p] {
						mark = "x"
					}
					row = append(row, mark)
				}
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
			return tw.Flush()
		},
	}

	add := &cobra.Command{
		Use:   "add <portal> <role>",
		Short: "Create a role with no permissions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ed, err := editor(cmd, args[0])
			if err != nil {
				return err
			}
			r, err := ed.Add(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Added role %s on %s\n", r.Name, r.Portal)
			return nil
		},
	}

	setFlags := func(granted bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, ed, err := editor(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := ed.Edit(args[1])
			if err != nil {
				return err
			}
			for _, p := range args[2:] {
				if err := d.Set(p, granted); err != nil {
					return err
				}
			}
			if err := ed.Commit(cmd.Context(), d); err != nil {
				return err
			}
			var on []string
			for p, v := range d.Role().Permissions {
				if v {
					on = append(on, p)
				}
			}
			sort.Strings(on)
			fmt.Fprintf(e.out, "%s/%s: %s\n", args[0], args[1], strings.Join(on, ", "))
			return nil
		}
	}

	grant := &cobra.Command{
		Use:   "grant <portal> <role> <permission>...",
		Short: "Grant permissions to a role",
		Args:  cobra.MinimumNArgs(3),
		RunE:  setFlags(true),
	}
	revoke := &cobra.Command{
		Use:   "revoke <portal> <role> <permission>...",
		Short: "Revoke permissions from a role",
		Args:  cobra.MinimumNArgs(3),
		RunE:  setFlags(false),
	}

	del := &cobra.Command{
		Use:   "delete <portal> <role>",
		Short: "Delete a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ed, err := editor(cmd, args[0])
			if err != nil {
				return err
			}
			if err := ed.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Deleted role %s on %s\n", args[1], args[0])
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <portal> <role> <new-name>",
		Short: "Rename a role; its users keep their permissions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ed, err := editor(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := ed.Edit(args[1])
			if err != nil {
				return err
			}
			if err := d.Rename(args[2]); err != nil {
				return err
			}
			if err := ed.Commit(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Renamed role %s to %s on %s\n", args[1], d.Role().Name, args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, grant, revoke, rename, del)
	return cmd
}
