package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bedrockmate/internal/compute"
)

var slimeX, slimeZ, slimeRadius int

var slimeCmd = &cobra.Command{
	Use:   "slime",
	Short: "List slime chunks around a block position without a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if slimeRadius < 0 {
			return fmt.Errorf("radius cannot be negative")
		}
		chunks := compute.SlimeChunks(slimeX, slimeZ, slimeRadius)
		if asJSON {
			return printJSON(compute.SlimeMapResult{
				CenterX:     slimeX,
				CenterZ:     slimeZ,
				Radius:      slimeRadius,
				SlimeChunks: chunks,
			})
		}
		for _, c := range chunks {
			fmt.Printf("%d %d\n", c.X, c.Z)
		}
		if len(chunks) == compute.MaxSlimeChunks {
			fmt.Printf("(stopped at %d chunks)\n", compute.MaxSlimeChunks)
		}
		return nil
	},
}

func init() {
	slimeCmd.Flags().IntVar(&slimeX, "x", 0, "Center block X")
	slimeCmd.Flags().IntVar(&slimeZ, "z", 0, "Center block Z")
	slimeCmd.Flags().IntVar(&slimeRadius, "radius", 1000, "Search radius in blocks")
	rootCmd.AddCommand(slimeCmd)
}
