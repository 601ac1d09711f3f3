package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aminox1/ludostore/internal/client"
)

func printRoster(players []client.Player) {
	for _, p := range players {
		badge := color.New(color.FgHiBlack).Sprint("● offline")
		if p.IsOnline {
			badge = color.GreenString("● online")
		}
		status := ""
		if p.Status != "" {
			status = "  " + color.New(color.Faint).Sprint(p.Status)
		}
		color.New().Printf("%-25s %s%s\n", p.DisplayName, badge, status)
	}
}

func newPlayersCmd(opts *cliOptions) *cobra.Command {
	var (
		page     int
		pageSize int
		search   string
	)
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Show who is online right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := opts.loadAPI()
			players, total, err := api.Players(cmd.Context(), page, pageSize, search)
			if err != nil {
				return err
			}
			if len(players) == 0 {
				color.Yellow("No players found.")
				return nil
			}
			printRoster(players)
			cmd.Printf("\n%d of %d players\n", len(players), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "players per page")
	cmd.Flags().StringVar(&search, "search", "", "filter by display name")
	return cmd
}

func newOnlineCmd(opts *cliOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "online",
		Short: "Go online and stream presence updates until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			conn, err := client.DialPresence(ctx, opts.effectiveServer(), opts.settings.Token)
			if err != nil {
				return err
			}
			defer conn.Close()

			if status != "" {
				if err := conn.SetStatus(ctx, status); err != nil {
					return err
				}
			}

			color.Green("✅ Online. Press Ctrl+C to disconnect.")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			for {
				ev, err := conn.Next(ctx)
				if err != nil {
					if ctx.Err() != nil {
						color.Yellow("\nDisconnected.")
						return nil
					}
					return err
				}
				if ev.Type != "players" {
					continue
				}
				cmd.Println()
				printRoster(ev.Players)
			}
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status line shown to other players")
	return cmd
}
