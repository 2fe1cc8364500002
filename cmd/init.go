package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively write a new config.json5",
		Run: func(cmd *cobra.Command, args []string) {
			runInit()
		},
	}
}

func runInit() {
	cfg := config.Default()
	bindStr := cfg.Gateway.Bind
	rateLimitStr := strconv.Itoa(cfg.Gateway.RateLimitPerMin)
	var telegramToken string
	enableTelegram := false

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Agent binary").
				Description("Path or name of the external agent CLI to invoke").
				Value(&cfg.Agent.Binary),
			huh.NewInput().
				Title("Agent workspace").
				Value(&cfg.Agent.Workspace),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP gateway bind address").
				Value(&bindStr),
			huh.NewInput().
				Title("Rate limit (requests/min)").
				Value(&rateLimitStr),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the Telegram adapter?").
				Value(&enableTelegram),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println("init cancelled:", err)
		return
	}

	if enableTelegram {
		telegramForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Stored only in your environment as GOCLAW_TELEGRAM_BOT_TOKEN, never written to disk").
				Value(&telegramToken),
		))
		if err := telegramForm.Run(); err != nil {
			fmt.Println("init cancelled:", err)
			return
		}
		cfg.Telegram.Enabled = true
	}

	cfg.Gateway.Bind = bindStr
	if n, err := strconv.Atoi(rateLimitStr); err == nil {
		cfg.Gateway.RateLimitPerMin = n
	}

	path := resolveConfigPath()
	if err := config.Save(path, cfg); err != nil {
		fmt.Println("failed to write config:", err)
		return
	}

	fmt.Printf("Wrote %s\n", path)
	if telegramToken != "" {
		fmt.Println()
		fmt.Println("Before starting goclaw, export your bot token:")
		fmt.Printf("  export GOCLAW_TELEGRAM_BOT_TOKEN=%s\n", telegramToken)
	}
}
