package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monthcal/internal/calendar"
	"monthcal/internal/config"
	"monthcal/internal/ics"
	appLog "monthcal/internal/log"
	"monthcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	month      string
	debug      bool
}

func main() {
	flags := parseFlags()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("monthcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.CacheDir = "./cache/ics-cache"
	} else {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}
	minRefresh, err := conf.MinRefresh()
	if err != nil {
		appLog.Error("invalid min_refresh_interval", err, "min_refresh_interval", conf.MinRefreshInterval)
		os.Exit(1)
	}
	timeout, err := conf.Timeout()
	if err != nil {
		appLog.Error("invalid fetch_timeout", err, "fetch_timeout", conf.FetchTimeout)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"min_refresh_interval", minRefresh.String(),
		"fetch_timeout", timeout.String(),
		"fetch_retries", conf.FetchRetries,
		"cache_dir", conf.CacheDir,
		"once", flags.once,
		"debug", flags.debug,
	)

	fetcher := ics.NewFetcher(conf.CacheDir, ics.FetchOptions{
		Timeout: timeout,
		Retries: conf.FetchRetries,
	})
	sub := ics.NewSubscription(fetcher, ics.Source{
		ID:       "default",
		URL:      conf.Source.URL,
		Username: conf.Source.Username,
		Password: conf.Source.Password,
	}, loc)
	index := calendar.NewIndex(sub, loc)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once {
		if err := runOnce(ctx, index, flags.month); err != nil {
			appLog.Error("once run failed", err)
			os.Exit(1)
		}
		return
	}

	poller := calendar.NewPoller(index, conf.RefreshCron, minRefresh)
	if err := poller.Start(ctx); err != nil {
		appLog.Error("failed to start refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}

	srv := web.NewServer(conf, index)
	if err := srv.Run(ctx); err != nil {
		appLog.Error("http server failed", err, "listen", conf.Listen)
		cancel()
	}

	<-poller.Stop().Done()
	appLog.Info("monthcal exiting")
}

// runOnce pulls the feed a single time and prints one month as JSON.
func runOnce(ctx context.Context, index *calendar.Index, month string) error {
	year, m, err := parseMonthFlag(month, time.Now().In(index.Location()))
	if err != nil {
		return err
	}
	if err := index.Refresh(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(index.GetMonth(year, m))
}

// parseMonthFlag reads YYYY-MM; an empty value means the month of now.
func parseMonthFlag(v string, now time.Time) (int, time.Month, error) {
	if v == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", v)
	if err != nil {
		return 0, 0, fmt.Errorf("-month %q: expected YYYY-MM", v)
	}
	return t.Year(), t.Month(), nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/monthcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Pull the feed once, print a month as JSON and exit")
	flag.StringVar(&cfg.month, "month", "", "Month printed by -once as YYYY-MM (default: current month)")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and a local cache directory (./cache/ics-cache)")

	flag.Parse()

	return cfg
}
