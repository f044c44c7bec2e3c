package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acornrpa/acorn/internal/adbui"
	"github.com/acornrpa/acorn/internal/api"
	"github.com/acornrpa/acorn/internal/automation"
	"github.com/acornrpa/acorn/internal/notify"
	"github.com/acornrpa/acorn/internal/script"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		serial     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the auto-reply pipeline",
		Long:  "Connects to the device, watches the target chat app, and replies to incoming messages until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, configPath, serial)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	cmd.Flags().StringVar(&serial, "serial", "", "device serial (overrides config)")
	return cmd
}

func runRun(cmd *cobra.Command, configPath, serial string) error {
	cfg, st, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if serial != "" {
		cfg.ADB.Serial = serial
	}

	out := cmd.OutOrStdout()

	ui, err := adbui.New(adbui.UIOpts{
		Client: adbui.NewClient(adbui.ClientOpts{
			Path:   cfg.ADB.Path,
			Serial: cfg.ADB.Serial,
		}),
		Out: out,
	})
	if err != nil {
		return err
	}

	eval := script.NewEvaluator(script.EvaluatorOpts{Out: out})

	notifier, err := notify.New(notify.NotifierOpts{Config: cfg.Notify, Out: out})
	if err != nil {
		return err
	}

	pipeline, err := automation.New(automation.PipelineOpts{
		Config:   cfg,
		Store:    st,
		Eval:     eval,
		UI:       ui,
		Notifier: notifier,
		Out:      out,
	})
	if err != nil {
		return err
	}

	watcher, err := adbui.NewWatcher(adbui.WatcherOpts{
		Source:   ui,
		Target:   cfg.Target.Package,
		TitleIDs: cfg.Selectors.ChatTitle,
		Poll:     time.Duration(cfg.Watch.PollMs) * time.Millisecond,
		Handler:  pipeline.HandleNotification,
		Out:      out,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.API.Enabled {
		go func() {
			err := api.Start(ctx, api.StartOpts{
				Store:      st,
				Eval:       eval,
				Engine:     pipeline.Engine(),
				Dispatcher: pipeline.Dispatcher(),
				Port:       cfg.API.Port,
				Out:        out,
			})
			if err != nil {
				log.Printf("api server: %v", err)
			}
		}()
	}

	go watcher.Run(ctx)

	fmt.Fprintf(out, "Watching %s (poll %dms, device %s)\n",
		cfg.Target.Package, cfg.Watch.PollMs, deviceLabel(cfg.ADB.Serial))
	return pipeline.Run(ctx)
}

func deviceLabel(serial string) string {
	if serial == "" {
		return "default"
	}
	return serial
}
