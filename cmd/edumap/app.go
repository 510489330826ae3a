package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vanderheijden86/edumap/pkg/api"
	"github.com/vanderheijden86/edumap/pkg/config"
	"github.com/vanderheijden86/edumap/pkg/debug"
	"github.com/vanderheijden86/edumap/pkg/layout"
	"github.com/vanderheijden86/edumap/pkg/livesync"
	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
	"github.com/vanderheijden86/edumap/pkg/render"
	"github.com/vanderheijden86/edumap/pkg/session"
	"github.com/vanderheijden86/edumap/pkg/snapshotstore"
	"github.com/vanderheijden86/edumap/pkg/tour"
)

// settleTicks bounds the headless simulation run before a frame is taken.
const settleTicks = 600

// app holds what every command shares: configuration, the backend client
// and the snapshot cache.
type app struct {
	out    io.Writer
	errOut io.Writer

	cfg        config.Config
	opts       rootOptions
	configPath string
	logger     *zap.Logger
	client     *api.Client
	cache      *snapshotstore.Store
	metricsSrv *http.Server

	closeOnce sync.Once
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, logger: zap.NewNop()}
}

func (a *app) init(ctx context.Context, opts *rootOptions) error {
	if opts.debug {
		debug.SetEnabled(true)
	}
	a.logger = newLogger(a.errOut, debug.Enabled())

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := opts.apply(&cfg); err != nil {
		return err
	}
	a.cfg = cfg
	a.opts = *opts
	a.configPath = opts.configPath
	if a.configPath == "" {
		a.configPath = config.ConfigPath()
	}

	a.client, err = api.New(api.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Logger:  a.logger.Named("api"),
	})
	if err != nil {
		return err
	}

	if path := cfg.CachePath(); path != "" && !opts.noCache {
		store, err := snapshotstore.Open(ctx, path, snapshotstore.WithKeep(cfg.Cache.Keep))
		if err != nil {
			a.logger.Warn("snapshot cache unavailable", zap.String("path", path), zap.Error(err))
		} else {
			a.cache = store
		}
	}

	if opts.metricsAddr != "" {
		if err := a.serveMetrics(opts.metricsAddr); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.ApplyEnv(os.LookupEnv)
}

// apply lays command-line overrides over cfg and validates the result.
func (o rootOptions) apply(cfg *config.Config) error {
	if o.backendURL != "" {
		cfg.Backend.URL = o.backendURL
	}
	if o.userID != "" {
		cfg.UserID = o.userID
	}
	if o.theme != "" {
		cfg.Theme = o.theme
	}
	return cfg.Validate()
}

// newLogger writes warnings and errors to w as console lines; with debug
// on it logs everything in development format.
func newLogger(w io.Writer, debugOn bool) *zap.Logger {
	if debugOn {
		return debug.Zap()
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zapcore.WarnLevel,
	)
	return zap.New(core)
}

// serveMetrics exposes the Prometheus registry and the timing table on
// addr until the app closes.
func (a *app) serveMetrics(addr string) error {
	metrics.SetEnabled(true)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/timings", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.AllTimingStats())
	})
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	fmt.Fprintln(a.errOut, subtleStyle.Render("metrics on http://"+ln.Addr().String()+"/metrics"))
	return nil
}

func (a *app) close() {
	a.closeOnce.Do(func() {
		if a.metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = a.metricsSrv.Shutdown(ctx)
			cancel()
		}
		if a.cache != nil {
			_ = a.cache.Close()
		}
		_ = a.logger.Sync()
	})
}

// viewer is one session with its offscreen frame loop and tour controller.
type viewer struct {
	sess *session.Session
	loop *render.FrameLoop
	tour *tour.Controller
}

// newViewer builds a session. live wires the push connection; narrator
// defaults to a silent one.
func (a *app) newViewer(live bool, narrator tour.Narrator) (*viewer, error) {
	if a.client == nil {
		return nil, errors.New("backend client not initialised")
	}
	engine := layout.New(a.cfg.LayoutOptions())
	surface := render.NewSurface(a.cfg.Viewport.Width, a.cfg.Viewport.Height)
	loop := render.NewFrameLoop(engine, render.NewRenderer(a.cfg.ResolvedTheme()), surface)
	if narrator == nil {
		narrator = tour.NopNarrator{}
	}
	tc := tour.NewController(narrator, tour.WithLogger(a.logger.Named("tour")))

	cfg := session.Config{
		Backend:     a.client,
		Loop:        loop,
		Tour:        tc,
		UserID:      a.cfg.UserID,
		ExportScale: a.cfg.Export.Scale,
		Logger:      a.logger.Named("session"),
	}
	if a.cache != nil {
		cfg.Cache = a.cache
	}
	if live {
		opts := livesync.Options{
			BaseURL:   a.cfg.WebsocketBase(),
			Reconnect: a.cfg.Reconnect,
			Logger:    a.logger.Named("livesync"),
		}
		cfg.NewSync = func(onUpdate livesync.UpdateHandler) session.Syncer {
			o := opts
			o.OnUpdate = onUpdate
			return livesync.NewSession(o)
		}
	}
	s, err := session.New(cfg)
	if err != nil {
		return nil, err
	}
	return &viewer{sess: s, loop: loop, tour: tc}, nil
}

func (v *viewer) close() { _ = v.sess.Close() }

// isSnapshotFile reports whether arg names an existing regular file rather
// than a graph id.
func isSnapshotFile(arg string) bool {
	info, err := os.Stat(arg)
	return err == nil && info.Mode().IsRegular()
}

// fileGraphID names a graph loaded from disk after its file.
func fileGraphID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// show loads source into v: a snapshot file is read from disk, anything
// else is opened as a graph id.
func (a *app) show(ctx context.Context, v *viewer, source, title string) error {
	if isSnapshotFile(source) {
		snap, err := model.ReadSnapshotFile(source)
		if err != nil {
			return err
		}
		if title == "" {
			title = fileGraphID(source)
		}
		return v.sess.Load(fileGraphID(source), title, snap)
	}
	if err := v.sess.Open(ctx, source, title); err != nil {
		return err
	}
	a.reportNotice(v.sess)
	return nil
}

func (a *app) reportNotice(s *session.Session) {
	if n, ok := s.Notice(); ok {
		printNotice(a.errOut, n)
		s.DismissNotice()
	}
}
