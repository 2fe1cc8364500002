package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("goclaw doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults will be used)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Agent:")
	fmt.Printf("    %-16s %s\n", "Binary:", cfg.Agent.Binary)
	fmt.Printf("    %-16s %s\n", "Workspace:", cfg.WorkspacePath())
	fmt.Printf("    %-16s %v\n", "Allowed tools:", []string(cfg.Agent.AllowedTools))
	if len(cfg.Gateway.AllowedCIDRs) == 0 && grantsShellTools(cfg.Agent.AllowedTools) {
		fmt.Println("    WARNING: shell-equivalent tools are allowed but gateway.allowed_cidrs is empty;")
		fmt.Println("             the HTTP adapter will refuse to start (see spec's configuration hard-fail).")
	}

	fmt.Println()
	fmt.Println("  Gateway:")
	fmt.Printf("    %-16s %s\n", "Bind:", cfg.Gateway.Bind)
	fmt.Printf("    %-16s %d\n", "Rate limit/min:", cfg.Gateway.RateLimitPerMin)
	fmt.Printf("    %-16s %v\n", "Allowed CIDRs:", cfg.Gateway.AllowedCIDRs)

	fmt.Println()
	fmt.Println("  Transports:")
	checkTelegram(cfg.Telegram.Enabled, cfg.Telegram.BotToken != "")
	fmt.Printf("    %-16s %d job(s)\n", "Heartbeats:", len(cfg.Cron.Heartbeats))
	if cfg.Tailscale.Enabled {
		fmt.Printf("    %-16s hostname=%s\n", "Tailscale:", cfg.Tailscale.Hostname)
	} else {
		fmt.Printf("    %-16s disabled\n", "Tailscale:")
	}

	fmt.Println()
	fmt.Println("  External tools:")
	checkBinary(cfg.Agent.Binary)
	checkBinary("git")

	ws := cfg.WorkspacePath()
	fmt.Println()
	fmt.Printf("  Workspace: %s", ws)
	if _, err := os.Stat(ws); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func grantsShellTools(tools []string) bool {
	for _, t := range tools {
		if t == "Bash" || t == "bash" || t == "shell" {
			return true
		}
	}
	return false
}

func checkTelegram(enabled, hasToken bool) {
	status := "disabled"
	switch {
	case enabled && hasToken:
		status = "enabled"
	case enabled:
		status = "enabled (missing bot token)"
	}
	fmt.Printf("    %-16s %s\n", "Telegram:", status)
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-16s NOT FOUND\n", name+":")
	} else {
		fmt.Printf("    %-16s %s\n", name+":", path)
	}
}
