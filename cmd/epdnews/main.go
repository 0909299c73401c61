package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"periph.io/x/devices/v3/videosink"

	"epdnews/internal/button"
	"epdnews/internal/config"
	"epdnews/internal/epd"
	"epdnews/internal/framebuf"
	appLog "epdnews/internal/log"
	"epdnews/internal/news"
	"epdnews/internal/render"
	"epdnews/internal/session"
	"epdnews/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	renderOnly bool
	dump       bool
	markdown   bool
}

func main() {
	appLog.Info("epdnews starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dump && conf.DumpDir == "" {
		conf.DumpDir = "./dump"
	}

	if lvl, err := appLog.ParseLevel(conf.LogLevel); err != nil {
		appLog.Error("invalid log level; using info", err)
	} else {
		appLog.SetLevel(lvl)
	}

	appLog.Info("effective config",
		"news_url", conf.NewsURL,
		"listen", conf.Listen,
		"orientation", conf.Orientation,
		"refresh", conf.RefreshCron,
		"max_width", conf.Layout.MaxWidth,
		"max_height", conf.Layout.MaxHeight,
		"poll_count", conf.Page.PollCount,
		"once", flags.once,
		"render_only", flags.renderOnly,
		"dump_dir", conf.DumpDir,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := news.NewFetcher(news.Options{
		CacheDir:   conf.CacheDir,
		MaxRetries: conf.FetchRetries(),
		RetryDelay: conf.FetchRetryDelay(),
	})
	feed := &news.Feed{Fetcher: fetcher, URL: conf.NewsURL}

	if flags.markdown {
		doc, err := feed.Document(ctx)
		if err != nil {
			appLog.Error("failed to fetch document", err)
			os.Exit(1)
		}
		fmt.Print(news.Markdown(doc))
		return
	}

	if err := run(ctx, conf, flags, feed); err != nil {
		appLog.Error("epdnews failed", err)
		os.Exit(1)
	}
	appLog.Info("epdnews exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig, feed session.Source) error {
	orientation, err := framebuf.ParseOrientation(conf.Orientation)
	if err != nil {
		return err
	}
	geom := epd.EPD2in13v3
	geom.Orientation = orientation
	geom.BusyTimeout = conf.BusyTimeout()

	var (
		panel session.Panel
		btn   button.Reader
	)
	if flags.renderOnly {
		// Press Enter to abort.
		panel = epd.NewConsole(nil)
		btn = button.NewLineReader(os.Stdin)
	} else {
		tr, err := epd.OpenPeriph(epd.Wiring{
			SPIPort: conf.Hardware.SPIPort,
			SPIHz:   conf.Hardware.SPIHz,
			Reset:   conf.Hardware.Reset,
			DC:      conf.Hardware.DC,
			CS:      conf.Hardware.CS,
			Busy:    conf.Hardware.Busy,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := tr.Close(); err != nil {
				appLog.Error("failed to close SPI port", err)
			}
		}()
		d, err := epd.New(tr, &geom)
		if err != nil {
			return err
		}
		panel = d
		btn = button.DefaultReader(conf.Hardware.Button, *conf.Hardware.ButtonActiveLow)
	}

	face, err := render.LoadFace(conf.Font.Path, conf.Font.Size)
	if err != nil {
		return err
	}
	fb := framebuf.New(geom.Width, geom.Height, geom.Orientation)
	sink := videosink.New(&videosink.Options{
		Width:  fb.Bounds().Dx(),
		Height: fb.Bounds().Dy(),
		Format: videosink.PNG,
	})

	opts := session.Options{
		MaxWidth:      conf.Layout.MaxWidth,
		MaxHeight:     conf.Layout.MaxHeight,
		PollInterval:  conf.PollInterval(),
		PollCount:     conf.Page.PollCount,
		ClearEachPage: *conf.Page.ClearEachPage,
		Once:          flags.once,
		Mirror:        sink,
		DumpDir:       conf.DumpDir,
	}
	if conf.RefreshCron != "" {
		sched, err := cron.ParseStandard(conf.RefreshCron)
		if err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
		}
		opts.Refresh = sched
	}

	sess, err := session.New(panel, feed, btn, fb, render.New(face, conf.Layout.LineStep), opts)
	if err != nil {
		return err
	}

	if conf.Listen != "" {
		go func() {
			if err := web.StartServer(ctx, conf, sess, sink); err != nil {
				appLog.Error("HTTP server failed", err)
			}
		}()
	}

	if err := sess.Run(ctx); err != nil {
		// Leave the panel blank and asleep even after a failure.
		if serr := sess.Shutdown(); serr != nil {
			appLog.Error("shutdown after failure failed", serr)
		}
		return err
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/epdnews/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Show every page once, then clear and sleep the panel")
	flag.BoolVar(&cfg.renderOnly, "render-only", false, "Draw pages on the terminal; do not touch display hardware (Enter aborts)")
	flag.BoolVar(&cfg.dump, "dump", false, "Write each page as PNG and raw plane into dump_dir (default ./dump)")
	flag.BoolVar(&cfg.markdown, "markdown", false, "Print the news document as Markdown and exit")

	flag.Parse()

	return cfg
}
