package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bedrockmate/internal/worlds"
)

var worldCmd = &cobra.Command{
	Use:     "world",
	Aliases: []string{"seed"},
	Short:   "Manage worlds and their seeds",
}

var worldDescription string

var worldAddCmd = &cobra.Command{
	Use:   "add <name> <seed>",
	Short: "Register a world",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		w, err := newClient().CreateWorld(ctx, worlds.Input{Name: args[0], Seed: args[1], Description: worldDescription})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(w)
		}
		fmt.Printf("Created world %s (%s)\n", w.ID, w.Name)
		return nil
	},
}

var worldListCmd = &cobra.Command{
	Use:   "list",
	Short: "List worlds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		list, err := newClient().ListWorlds(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(list)
		}
		for _, w := range list {
			active := " "
			if w.IsActive {
				active = "*"
			}
			fmt.Printf("%s %s  %-20s  seed=%s\n", active, w.ID, w.Name, w.Seed)
		}
		return nil
	},
}

var worldActivateCmd = &cobra.Command{
	Use:   "activate <world-id>",
	Short: "Make a world the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := newClient().ActivateWorld(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("World activated:", args[0])
		return nil
	},
}

var worldDeleteCmd = &cobra.Command{
	Use:   "delete <world-id>",
	Short: "Delete a world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := newClient().DeleteWorld(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("World deleted:", args[0])
		return nil
	},
}

func init() {
	worldAddCmd.Flags().StringVar(&worldDescription, "description", "", "Free-form description")
	worldCmd.AddCommand(worldAddCmd, worldListCmd, worldActivateCmd, worldDeleteCmd)
	rootCmd.AddCommand(worldCmd)
}
