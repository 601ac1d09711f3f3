package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDownloadCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download <game-id>",
		Short: "Download an owned game and install it locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid game id %q", args[0])
			}
			api := opts.loadAPI()
			g, err := api.GameDetails(cmd.Context(), id)
			if err != nil {
				return err
			}

			tmp, err := os.MkdirTemp("", "ludoctl-dl-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)
			archive := filepath.Join(tmp, "payload.zip")

			cmd.Printf("Downloading %s...\n", g.Name)
			err = api.Download(cmd.Context(), id, archive, func(written, total int64) {
				if total > 0 {
					fmt.Printf("\r  %3.0f%% (%.1f / %.1f MB)",
						float64(written)/float64(total)*100,
						float64(written)/(1<<20), float64(total)/(1<<20))
				} else {
					fmt.Printf("\r  %.1f MB", float64(written)/(1<<20))
				}
			})
			fmt.Println()
			if err != nil {
				return err
			}

			meta, err := opts.library().Install(id, g.Name, archive)
			if err != nil {
				return err
			}
			color.Green("✅ Installed %s (%.1f MB)", meta.Name, float64(meta.SizeBytes)/(1<<20))
			return nil
		},
	}
}

func newPlayCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play <game-id>",
		Short: "Launch an installed game",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid game id %q", args[0])
			}
			if err := opts.library().Launch(id); err != nil {
				return err
			}
			color.Green("🎮 Game launched. Have fun!")
			return nil
		},
	}
}

func newRemoveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <game-id>",
		Short: "Delete a local install (the game stays in your library)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid game id %q", args[0])
			}
			if err := opts.library().Remove(id); err != nil {
				return err
			}
			color.Yellow("Removed local files for game %d.", id)
			return nil
		},
	}
}

func newInstalledCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "installed",
		Short: "List locally installed games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			games, err := opts.library().List()
			if err != nil {
				return err
			}
			if len(games) == 0 {
				color.Yellow("Nothing installed yet. Try 'ludoctl download <game-id>'.")
				return nil
			}
			for _, g := range games {
				cmd.Printf("%4d  %-30s %.1f MB  installed %s\n",
					g.GameID, g.Name,
					float64(g.SizeBytes)/(1<<20),
					g.InstalledAt.Local().Format("2006-01-02"))
			}
			return nil
		},
	}
}
