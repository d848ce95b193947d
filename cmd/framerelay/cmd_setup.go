package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/framerelay/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("FrameRelay Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. Captures root
		cfg.CapturesRoot = prompt(scanner, "Captures root directory", cfg.CapturesRoot)

		// 2. Listen address
		cfg.Listen = prompt(scanner, "Listen address", cfg.Listen)

		// 3. Remote hop endpoints
		cfg.Extract.Endpoint = prompt(scanner, "Prompt extraction endpoint", cfg.Extract.Endpoint)
		cfg.Detect.Endpoint = prompt(scanner, "Object detection endpoint", cfg.Detect.Endpoint)
		cfg.Ingest.Endpoint = prompt(scanner, "Ingest endpoint", cfg.Ingest.Endpoint)

		// 4. Dashboard URL (optional)
		cfg.Dashboard.URL = prompt(scanner, "Dashboard URL (optional)", cfg.Dashboard.URL)

		// 5. Telegram alerts (optional)
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		chatStr := prompt(scanner, "Telegram chat ID (optional)", strconv.FormatInt(cfg.Telegram.ChatID, 10))
		if n, err := strconv.ParseInt(chatStr, 10, 64); err == nil {
			cfg.Telegram.ChatID = n
		}

		// 6. Captures sweep
		sweepStr := prompt(scanner, "Enable captures sweep (true/false)", strconv.FormatBool(cfg.Sweep.Enabled))
		if b, err := strconv.ParseBool(sweepStr); err == nil {
			cfg.Sweep.Enabled = b
		}
		if cfg.Sweep.Enabled {
			cfg.Sweep.Schedule = prompt(scanner, "Sweep schedule (cron)", cfg.Sweep.Schedule)
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
