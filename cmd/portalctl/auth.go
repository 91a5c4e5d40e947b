package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(o *options) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			reader := bufio.NewReader(e.in)
			if username == "" {
				if username, err = prompt(e, reader, "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(e, reader, "Password: "); err != nil {
					return err
				}
			}

			resp, err := e.client.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if resp.User.Portal != e.cfg.Client.Portal {
				fmt.Fprintf(e.out, "Note: %s is a %s user\n", resp.User.Username, resp.User.Portal)
			}
			fmt.Fprintf(e.out, "Logged in to the %s portal as %s (%s)\n", e.cfg.Client.Portal, resp.User.Username, resp.User.Role)
			if len(resp.User.Permissions) > 0 {
				fmt.Fprintf(e.out, "Permissions: %s\n", strings.Join(resp.User.Permissions, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.env()
			if err != nil {
				return err
			}
			if err := e.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "Logged out")
			return nil
		},
	}
}

func prompt(e *env, r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(e.out, label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// stdinConfirmer asks a yes/no question on the command's streams.
type stdinConfirmer struct {
	e *env
}

func (c stdinConfirmer) Confirm(_ context.Context, question string) (bool, error) {
	answer, err := prompt(c.e, bufio.NewReader(c.e.in), question+" [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
