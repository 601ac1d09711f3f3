package main

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Authenticate against the server and save the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.loadAPI()
			profile, err := api.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if err := opts.saveToken(profile.Token); err != nil {
				return err
			}
			color.Green("✅ Logged in as %s (%s)", profile.DisplayName, profile.Email)
			return nil
		},
	}
}

func newRegisterCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <email> <display-name> <password>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.loadAPI()
			profile, err := api.Register(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if err := opts.saveToken(profile.Token); err != nil {
				return err
			}
			color.Green("✅ Welcome, %s! Account created and logged in.", profile.DisplayName)
			return nil
		},
	}
}

func newLogoutCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := opts.saveToken(""); err != nil {
				return err
			}
			color.Yellow("Session cleared.")
			return nil
		},
	}
}

func newWhoamiCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := opts.loadAPI()
			profile, err := api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			color.Cyan("%s <%s>", profile.DisplayName, profile.Email)
			if len(profile.Roles) > 0 {
				cmd.Printf("roles: %s\n", strings.Join(profile.Roles, ", "))
			}
			return nil
		},
	}
}
