// Package main implements the weekshift CLI.
// This file contains the live page watching command.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weekshift/internal/browser"
	"weekshift/internal/grid"
	"weekshift/internal/settings"
	"weekshift/internal/watch"
)

var (
	watchDebounce    time.Duration
	watchGiveUp      time.Duration
	watchHeadless    bool
	watchChrome      string
	watchDebuggerURL string
	watchTargetID    string
)

var watchCmd = &cobra.Command{
	Use:   "watch [url]",
	Short: "Attach to a profile page and keep its calendar Monday-first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "trailing delay for coalescing DOM mutation bursts")
	watchCmd.Flags().DurationVar(&watchGiveUp, "give-up", 0, "stop watching if no calendar grid appears within this window (0 = keep watching)")
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "launch the browser headless")
	watchCmd.Flags().StringVar(&watchChrome, "chrome", "", "chrome binary to launch")
	watchCmd.Flags().StringVar(&watchDebuggerURL, "debugger-url", "", "attach to an already running browser instead of launching one")
	watchCmd.Flags().StringVar(&watchTargetID, "target-id", "", "watch an existing tab by DevTools target ID instead of opening a new one")
}

func getBrowserConfig() browser.Config {
	cfg := browser.DefaultConfig()
	cfg.Headless = watchHeadless
	cfg.DebuggerURL = watchDebuggerURL
	if watchChrome != "" {
		cfg.Launch = []string{watchChrome}
	}
	cfg.SessionStore = filepath.Join(stateDir(), "sessions.json")
	return cfg
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchTargetID == "" && len(args) == 0 {
		return errors.New("a profile URL is required unless --target-id is given")
	}

	store := settings.Open(settingsPath)
	enabled, err := store.Enabled()
	if err != nil {
		// A broken settings store fails safe: no watching at all.
		logger.Warn("settings unreadable, staying disabled", zap.Error(err))
		return nil
	}
	if !enabled {
		fmt.Println("Realignment is disabled. Enable with 'weekshift settings enable'.")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := browser.NewSessionManager(getBrowserConfig(), logger)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("browser shutdown", zap.Error(err))
		}
	}()

	var session *browser.Session
	if watchTargetID != "" {
		session, err = mgr.Attach(ctx, watchTargetID)
		if err != nil {
			return fmt.Errorf("attach to target: %w", err)
		}
	} else {
		session, err = mgr.CreateSession(ctx, args[0])
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}
	page, ok := mgr.Page(session.ID)
	if !ok {
		return fmt.Errorf("session %s has no page", session.ID)
	}

	pr := browser.NewPageRealigner(page, grid.NewRealigner(logger), logger)
	if err := pr.WaitReady(ctx); err != nil {
		logger.Warn("page load wait", zap.Error(err))
	}

	w := watch.New(browser.NewMutationSource(page, logger), pr.Check, watch.Config{
		Debounce:    watchDebounce,
		GiveUpAfter: watchGiveUp,
	}, logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	// History navigations re-render the calendar without a full load;
	// nudge the watcher so the replacement grid is corrected promptly.
	waitNav := page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		logger.Debug("frame navigated", zap.String("url", ev.Frame.URL))
		w.Poke(ctx)
	})
	go waitNav()

	// React to live settings toggles without restarting the process.
	if err := store.Watch(ctx, func() {
		enabled, err := store.Enabled()
		if err != nil {
			logger.Warn("settings re-read failed, disabling", zap.Error(err))
			enabled = false
		}
		if enabled {
			if err := w.Start(ctx); err != nil {
				logger.Error("restart watcher", zap.Error(err))
			}
		} else {
			w.Stop()
		}
	}); err != nil {
		logger.Warn("settings watch unavailable", zap.Error(err))
	}

	target := session.URL
	if target == "" {
		target = "target " + session.TargetID
	}
	fmt.Printf("Watching %s (session %s)\n", target, session.ID)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
