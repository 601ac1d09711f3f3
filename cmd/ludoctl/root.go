package main

import (
	"github.com/spf13/cobra"

	"github.com/aminox1/ludostore/internal/client"
)

type cliOptions struct {
	serverURL  string
	installDir string
	settings   client.Settings
}

// loadAPI builds an API client from saved settings plus flag overrides.
func (o *cliOptions) loadAPI() *client.API {
	return client.NewAPI(o.effectiveServer(), o.settings.Token)
}

func (o *cliOptions) effectiveServer() string {
	if o.serverURL != "" {
		return o.serverURL
	}
	return o.settings.ServerURL
}

func (o *cliOptions) library() *client.Library {
	dir := o.installDir
	if dir == "" {
		dir = o.settings.InstallDir
	}
	return client.NewLibrary(dir)
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "ludoctl",
		Short: "Desktop client for the LudoStore game store",
		Long: `ludoctl talks to a LudoStore server: browse the catalog, buy games,
download and launch them locally, and see who is online.

Credentials and the install directory are stored in the user config
directory after the first login.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			s, err := client.LoadSettings()
			if err != nil {
				return err
			}
			opts.settings = s
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "server base URL (overrides saved setting)")
	root.PersistentFlags().StringVar(&opts.installDir, "install-dir", "", "local games directory (overrides saved setting)")

	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newLogoutCmd(opts))
	root.AddCommand(newWhoamiCmd(opts))
	root.AddCommand(newGamesCmd(opts))
	root.AddCommand(newShowCmd(opts))
	root.AddCommand(newBuyCmd(opts))
	root.AddCommand(newMineCmd(opts))
	root.AddCommand(newDownloadCmd(opts))
	root.AddCommand(newPlayCmd(opts))
	root.AddCommand(newRemoveCmd(opts))
	root.AddCommand(newInstalledCmd(opts))
	root.AddCommand(newPlayersCmd(opts))
	root.AddCommand(newOnlineCmd(opts))

	return root
}

// saveToken persists the session for subsequent commands.
func (o *cliOptions) saveToken(token string) error {
	o.settings.Token = token
	if o.serverURL != "" {
		o.settings.ServerURL = o.serverURL
	}
	if o.installDir != "" {
		o.settings.InstallDir = o.installDir
	}
	return client.SaveSettings(o.settings)
}
