package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hamed0406/watchmen/internal/config"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the environment and services file before deploying",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return preflight(loadConfig(), cmd.OutOrStdout())
	},
}

var errPreflight = errors.New("preflight failed")

// preflight reports problems with cfg. Warnings do not fail the run.
func preflight(cfg config.Config, out io.Writer) error {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(out, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(out, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(out, "✔", msg) }

	defs, err := config.LoadServices(cfg.ServicesFile)
	if err != nil {
		fail(err.Error())
	} else if _, err := buildServices(defs, cfg); err != nil {
		fail(err.Error())
	} else if len(defs) == 0 {
		warn(cfg.ServicesFile + " lists no services; nothing will be monitored.")
	} else {
		ok(fmt.Sprintf("%s: %d services", cfg.ServicesFile, len(defs)))
	}

	switch cfg.Store {
	case "memory", "nop":
		warn("STORE=" + cfg.Store + ": outages are not kept across restarts.")
	case "postgres":
		if cfg.DatabaseURL == "" {
			fail("STORE=postgres but DATABASE_URL is empty.")
		} else {
			ok("DATABASE_URL present")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			fail("STORE=redis but REDIS_ADDR is empty.")
		} else {
			ok("REDIS_ADDR=" + cfg.RedisAddr)
		}
	default:
		fail("STORE=" + cfg.Store + " is not one of memory, postgres, redis, nop.")
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; start/stop/ping routes are open to anyone.")
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; read routes are open to anyone.")
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}
	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK_URL empty; alerts go to the log only.")
	} else {
		ok("SLACK_WEBHOOK_URL present")
	}

	if failed {
		return errPreflight
	}
	ok("preflight passed")
	return nil
}
