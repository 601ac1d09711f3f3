package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aminox1/ludostore/internal/client"
)

func formatPrice(p float64) string {
	if p == 0 {
		return color.GreenString("Free")
	}
	return fmt.Sprintf("%.2f €", p)
}

func printGameTable(cmd *cobra.Command, games []client.Game, total int) {
	if len(games) == 0 {
		color.Yellow("No games found.")
		return
	}
	for _, g := range games {
		owned := ""
		if g.IsOwned {
			owned = color.GreenString(" ✓ owned")
		}
		cats := make([]string, 0, len(g.Categories))
		for _, c := range g.Categories {
			cats = append(cats, c.Name)
		}
		cmd.Printf("%4d  %-30s %10s  %s%s\n", g.ID, g.Name, formatPrice(g.Price), strings.Join(cats, ","), owned)
	}
	cmd.Printf("\n%d of %d games\n", len(games), total)
}

func newGamesCmd(opts *cliOptions) *cobra.Command {
	var (
		name     string
		category int
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Browse the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := opts.loadAPI()
			games, total, err := api.ListGames(cmd.Context(), client.GameQuery{
				Name: name, Category: category, Page: page, PageSize: pageSize,
			})
			if err != nil {
				return err
			}
			printGameTable(cmd, games, total)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "filter by name substring")
	cmd.Flags().IntVar(&category, "category", 0, "filter by category id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "games per page")
	return cmd
}

func newMineCmd(opts *cliOptions) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List the games you own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := opts.loadAPI()
			games, total, err := api.MyGames(cmd.Context(), client.GameQuery{Page: page})
			if err != nil {
				return err
			}
			lib := opts.library()
			for i := range games {
				if lib.IsInstalled(games[i].ID) {
					games[i].Name += " [installed]"
				}
			}
			printGameTable(cmd, games, total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newShowCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <game-id>",
		Short: "Show one game's details",
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
			color.Cyan("%s", g.Name)
			cmd.Printf("  price: %s\n", formatPrice(g.Price))
			if g.SizeBytes > 0 {
				cmd.Printf("  size:  %.1f MB\n", float64(g.SizeBytes)/(1<<20))
			}
			if len(g.Categories) > 0 {
				names := make([]string, 0, len(g.Categories))
				for _, c := range g.Categories {
					names = append(names, c.Name)
				}
				cmd.Printf("  categories: %s\n", strings.Join(names, ", "))
			}
			if g.Description != "" {
				cmd.Printf("\n%s\n", g.Description)
			}
			if g.IsOwned {
				color.Green("\n✓ You own this game")
			}
			return nil
		},
	}
}

func newBuyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <game-id>",
		Short: "Purchase a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid game id %q", args[0])
			}
			api := opts.loadAPI()
			if err := api.Purchase(cmd.Context(), id); err != nil {
				return err
			}
			color.Green("✅ Purchased! Run 'ludoctl download %d' to install it.", id)
			return nil
		},
	}
}
