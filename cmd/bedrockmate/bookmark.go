package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bedrockmate/internal/bookmarks"
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Save and list coordinates in a world",
}

var (
	bmWorld     string
	bmY         int
	bmDimension string
	bmCategory  string
	bmIcon      string
	bmNotes     string
)

// Negative coordinates go after "--" so they are not read as flags.
const bookmarkAddExample = `  bedrockmate bookmark add home 120 340 --category base
  bedrockmate bookmark add portal --dimension nether -- -15 -42`

var bookmarkAddCmd = &cobra.Command{
	Use:     "add <name> <x> <z>",
	Short:   "Bookmark a coordinate",
	Example: bookmarkAddExample,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("x: %w", err)
		}
		z, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("z: %w", err)
		}

		c := newClient()
		ctx, cancel := requestContext(cmd)
		defer cancel()
		worldID, err := resolveWorld(ctx, c, bmWorld)
		if err != nil {
			return err
		}
		in := bookmarks.Input{
			WorldID:   worldID,
			Name:      args[0],
			X:         &x,
			Z:         &z,
			Dimension: bookmarks.Dimension(bmDimension),
			Category:  bmCategory,
			Icon:      bmIcon,
			Notes:     bmNotes,
		}
		if cmd.Flags().Changed("y") {
			in.Y = &bmY
		}
		b, err := c.CreateBookmark(ctx, in)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(b)
		}
		fmt.Printf("Bookmarked %s %s at %d %d %d (%s)\n", b.Icon, b.Name, b.X, b.Y, b.Z, b.Dimension)
		return nil
	},
}

var bookmarkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a world's bookmarks by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		ctx, cancel := requestContext(cmd)
		defer cancel()
		worldID, err := resolveWorld(ctx, c, bmWorld)
		if err != nil {
			return err
		}
		list, err := c.ListBookmarks(ctx, worldID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(list)
		}
		for _, b := range list {
			fmt.Printf("%s  %s %-20s  %-10s  %6d %4d %6d  %s\n",
				b.ID, b.Icon, b.Name, b.Category, b.X, b.Y, b.Z, b.Dimension)
		}
		return nil
	},
}

var bookmarkDeleteCmd = &cobra.Command{
	Use:   "delete <bookmark-id>",
	Short: "Delete a bookmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := newClient().DeleteBookmark(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Bookmark deleted:", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{bookmarkAddCmd, bookmarkListCmd} {
		c.Flags().StringVar(&bmWorld, "world", "", "World id (defaults to the active world)")
	}
	bookmarkAddCmd.Flags().IntVar(&bmY, "y", bookmarks.DefaultY, "Y coordinate")
	bookmarkAddCmd.Flags().StringVar(&bmDimension, "dimension", string(bookmarks.Overworld), "overworld|nether|end")
	bookmarkAddCmd.Flags().StringVar(&bmCategory, "category", "", "Category, e.g. base, village, portal")
	bookmarkAddCmd.Flags().StringVar(&bmIcon, "icon", "", "Icon shown next to the name")
	bookmarkAddCmd.Flags().StringVar(&bmNotes, "notes", "", "Free-form notes")
	bookmarkCmd.AddCommand(bookmarkAddCmd, bookmarkListCmd, bookmarkDeleteCmd)
	rootCmd.AddCommand(bookmarkCmd)
}
