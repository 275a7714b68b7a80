package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (c *CLI) loginCommand() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			reader := bufio.NewReader(c.in)
			if username == "" {
				if username, err = c.prompt(reader, "Username: "); err != nil {
					return err
				}
			}
			password, err := c.readSecret(reader, "Password: ")
			if err != nil {
				return err
			}
			result, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			c.printf("%s logged in as %s until %s\n", green("✓"), bold(username), result.ExpiresAt.Local().Format(time.Kitchen))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	return cmd
}

func (c *CLI) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			if err := client.Logout(); err != nil {
				return err
			}
			c.printf("%s logged out\n", green("✓"))
			return nil
		},
	}
}

func (c *CLI) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			me, err := client.Me(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("%s (%s), session valid until %s\n", bold(me.Username), me.Role, me.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func (c *CLI) passwordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the admin password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			reader := bufio.NewReader(c.in)
			current, err := c.readSecret(reader, "Current password: ")
			if err != nil {
				return err
			}
			next, err := c.readSecret(reader, "New password: ")
			if err != nil {
				return err
			}
			confirm, err := c.readSecret(reader, "Repeat new password: ")
			if err != nil {
				return err
			}
			if next != confirm {
				return errors.New("passwords do not match")
			}
			if err := client.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			c.printf("%s password changed\n", green("✓"))
			return nil
		},
	}
}

func (c *CLI) prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(c.errOut, label)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret disables echo on a terminal and falls back to one line of input.
func (c *CLI) readSecret(reader *bufio.Reader, label string) (string, error) {
	if file, ok := c.in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(c.errOut, label)
		raw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(c.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
