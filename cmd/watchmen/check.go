package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/config"
	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/events"
	"github.com/hamed0406/watchmen/internal/watchmen"
)

var checkJSON bool

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print events as JSON lines")
}

var checkCmd = &cobra.Command{
	Use:   "check <service-id>",
	Short: "Run one check for a service and print the events it produces",
	Long:  "Runs a single check cycle against the configured store, exactly like a scheduled check, and exits non-zero if the service is down.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context(), loadConfig(), domain.ServiceID(args[0]), cmd.OutOrStdout(), checkJSON)
	},
}

var errServiceDown = errors.New("service is down")

func runCheck(ctx context.Context, cfg config.Config, id domain.ServiceID, out io.Writer, asJSON bool) error {
	defs, err := config.LoadServices(cfg.ServicesFile)
	if err != nil {
		return err
	}
	svcs, err := buildServices(defs, cfg)
	if err != nil {
		return err
	}
	log := zap.NewNop()
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	eng, err := watchmen.New(svcs, st.outages, watchmen.WithLogger(log))
	if err != nil {
		return err
	}
	defer eng.Close()

	var (
		mu   sync.Mutex
		down bool
	)
	eng.OnAny(func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Kind == events.Ping && ev.Payload.Error != "" {
			down = true
		}
		printEvent(out, ev, asJSON)
	})

	if err := eng.Ping(ctx, watchmen.Task{ServiceID: id}); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if down {
		return errServiceDown
	}
	return nil
}

func printEvent(out io.Writer, ev events.Event, asJSON bool) {
	if asJSON {
		_ = json.NewEncoder(out).Encode(ev)
		return
	}
	p := ev.Payload
	switch ev.Kind {
	case events.NewOutage, events.CurrentOutage:
		fmt.Fprintf(out, "%-16s %s since %s: %s\n", ev.Kind, ev.Service.ID, p.Timestamp.Format("2006-01-02 15:04:05"), p.Error)
	case events.ServiceBack:
		var downtime string
		if p.Outage != nil {
			downtime = p.Outage.Downtime.String()
		}
		fmt.Fprintf(out, "%-16s %s after %s\n", ev.Kind, ev.Service.ID, downtime)
	case events.ServiceOK, events.LatencyWarning:
		fmt.Fprintf(out, "%-16s %s in %s\n", ev.Kind, ev.Service.ID, p.ElapsedTime)
	default:
		status := "up"
		if p.Error != "" {
			status = "down: " + p.Error
		}
		fmt.Fprintf(out, "%-16s %s %s (%s)\n", ev.Kind, ev.Service.ID, status, p.ElapsedTime)
	}
}
