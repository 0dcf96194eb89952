package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ScribblePad/internal/config"
	"ScribblePad/internal/logging"
	scribblenet "ScribblePad/internal/net"
	"ScribblePad/internal/offline"
	"ScribblePad/internal/pad"
	"ScribblePad/internal/surface"
	"ScribblePad/internal/ui"
	"ScribblePad/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "discover" {
		if err := runDiscover(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	fs := flag.NewFlagSet("scribblepad", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a TOML config file")
	headless := fs.Bool("headless", false, "run without a window, drawing only remote input")
	width := fs.Float64("width", 0, "headless viewport width")
	height := fs.Float64("height", 0, "headless viewport height")
	ratio := fs.Float64("ratio", 0, "headless device pixel ratio")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *width > 0 {
		cfg.Surface.Width = *width
	}
	if *height > 0 {
		cfg.Surface.Height = *height
	}
	if *ratio > 0 {
		cfg.Surface.PixelRatio = *ratio
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *headless {
		runHeadless(cfg, *configPath, logger)
	} else {
		runWindow(cfg, *configPath, logger)
	}
}

func runWindow(cfg config.Config, configPath string, logger *zap.Logger) {
	a := ui.NewApp()
	board := ui.NewPadWidget(logger)
	p, err := pad.New(cfg, board, logger)
	if err != nil {
		logger.Fatal("creating pad", zap.Error(err))
	}
	board.SetPad(p)
	board.OnSurfaceError = func(err error) {
		logger.Fatal("no rendering context for the pad", zap.Error(err))
	}

	stop := startServices(cfg, configPath, p, logger)
	defer stop()

	shareLink := ""
	if cfg.Remote.Enabled {
		if shareLink, err = scribblenet.ShareLink(cfg.Remote.Listen, scribblenet.OutgoingIP); err != nil {
			logger.Warn("no share link", zap.Error(err))
		}
	}
	ui.RunApp(a, board, shareLink)
}

func runHeadless(cfg config.Config, configPath string, logger *zap.Logger) {
	vp := surface.Viewport{Width: cfg.Surface.Width, Height: cfg.Surface.Height, PixelRatio: cfg.Surface.PixelRatio}
	p, err := pad.New(cfg, surface.ViewportFunc(func() surface.Viewport { return vp }), logger)
	if err != nil {
		logger.Fatal("creating pad", zap.Error(err))
	}
	if err := p.Initialize(); err != nil {
		logger.Fatal("no rendering context for the pad", zap.Error(err))
	}
	if !cfg.Remote.Enabled {
		logger.Warn("headless pad without remote input has nothing to draw")
	}

	stop := startServices(cfg, configPath, p, logger)
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	logger.Info("headless pad running", zap.Float64("width", vp.Width), zap.Float64("height", vp.Height))
	<-sig
}

// startServices brings up config reloading, the asset cache, the remote
// server and its mDNS advertisement. The returned func tears them down.
func startServices(cfg config.Config, configPath string, p *pad.Pad, logger *zap.Logger) func() {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if configPath != "" {
		w, err := config.NewWatcher(configPath, cfg, logger)
		if err != nil {
			logger.Warn("config reload disabled", zap.Error(err))
		} else {
			w.OnChange(func(c config.Config) {
				style, err := c.Stroke.Style()
				if err != nil {
					return
				}
				p.SetStyle(style)
			})
			w.Start()
			stops = append(stops, w.Stop)
		}
	}

	if !cfg.Remote.Enabled {
		return stop
	}

	cache, err := newAssetCache(cfg, logger)
	if err != nil {
		logger.Fatal("asset cache", zap.Error(err))
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cache.Install(ctx); err != nil {
			logger.Warn("precaching incomplete", zap.String("cache", cache.Name()), zap.Error(err))
		}
	}()

	srv := scribblenet.NewServer(cfg.Remote.Listen, p, cache, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("starting remote server", zap.Error(err))
	}
	stops = append(stops, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("remote server shutdown", zap.Error(err))
		}
	})

	if cfg.Remote.Advertise {
		if err := advertise(cfg, p, &stops); err != nil {
			logger.Warn("mDNS advertisement disabled", zap.Error(err))
		}
	}
	return stop
}

func advertise(cfg config.Config, p *pad.Pad, stops *[]func()) error {
	port, err := scribblenet.ListenPort(cfg.Remote.Listen)
	if err != nil {
		return err
	}
	server, err := scribblenet.Advertise(cfg.Remote.Service, port, "pad="+p.ID())
	if err != nil {
		return err
	}
	*stops = append(*stops, func() { server.Shutdown() })
	return nil
}

func newAssetCache(cfg config.Config, logger *zap.Logger) (*offline.Cache, error) {
	var origin offline.Origin = offline.HandlerOrigin{Handler: web.Handler()}
	if cfg.Assets.Upstream != "" {
		up, err := offline.NewHTTPOrigin(cfg.Assets.Upstream, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}
		origin = up
	}
	return offline.New(cfg.Assets.CacheName, origin, cfg.Assets.Precache, logger), nil
}

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	service := fs.String("service", config.Default().Remote.Service, "mDNS service name")
	timeout := fs.Duration("timeout", 3*time.Second, "how long to listen for answers")
	fs.Parse(args)

	found := 0
	err := scribblenet.Browse(*service, *timeout, func(peer scribblenet.Peer) {
		found++
		fmt.Printf("%s\t%s\n", peer.Name, peer.URL())
	})
	if err != nil {
		return err
	}
	if found == 0 {
		return errors.New("no pads found")
	}
	return nil
}
