package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bedrockmate/internal/client"
)

var (
	serverURL  string
	configPath string
	asJSON     bool
)

var rootCmd = &cobra.Command{
	Use:           "bedrockmate",
	Short:         "Seed-analysis job server and client for Minecraft Bedrock worlds",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}
		if !cmd.Flags().Changed("server") {
			if v := os.Getenv("BEDROCKMATE_SERVER"); v != "" {
				serverURL = v
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", client.DefaultServer, "Base URL of the bedrockmate server")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "JSON output")
}

func newClient() *client.Client {
	return client.New(serverURL)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// resolveWorld returns worldID, or the active world's id when it is empty.
func resolveWorld(ctx context.Context, c *client.Client, worldID string) (string, error) {
	if worldID != "" {
		return worldID, nil
	}
	active, err := c.ActiveWorld(ctx)
	if err != nil {
		return "", err
	}
	if active == nil {
		return "", errors.New("no --world given and no world is active")
	}
	return active.ID, nil
}
