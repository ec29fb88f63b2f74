// nettrack - issue HTTP requests through an instrumented client and print the
// captured network events as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brennhill/gasoline-network-tracker/internal/config"
	"github.com/brennhill/gasoline-network-tracker/internal/egress"
	"github.com/brennhill/gasoline-network-tracker/internal/host"
	"github.com/brennhill/gasoline-network-tracker/internal/network"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "0.1.0"

const flushTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "nettrack:", err)
		os.Exit(1)
	}
}

// run loads the configuration from args, issues every configured request and
// writes one JSON line per captured event to out.
func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.Log)
	defer func() { _ = log.Sync() }()

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	h := host.New(host.Options{
		ServiceURLs: cfg.ServiceURLs,
		QueueSize:   cfg.QueueSize,
		Logger:      log,
	})
	env := network.NewEnv(newHTTPClient(cfg, log),
		network.WithClock(h.Clock()),
		network.WithLogger(log))
	tracker, err := network.Install(env, h, opts)
	if err != nil {
		return err
	}
	defer tracker.Uninstall()

	log.Info("nettrack starting",
		zap.String("version", version),
		zap.String("mode", cfg.Mode),
		zap.Int("urls", len(cfg.URLs)),
		zap.String("session", h.SessionToken()))

	if cfg.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(cfg.MetricsAddr, h, log)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	events, unsubscribe := h.Subscribe(cfg.QueueSize)
	var printed sync.WaitGroup
	printed.Add(1)
	go func() {
		defer printed.Done()
		enc := json.NewEncoder(out)
		for ev := range events {
			if err := enc.Encode(ev); err != nil {
				log.Warn("couldn't write event", zap.Error(err))
			}
		}
	}()

	r := &requester{cfg: cfg, env: env, log: log}
	if cfg.Mode == config.ModeClient {
		r.client = newHTTPClient(cfg, log)
		restore := tracker.InstrumentClient(r.client)
		defer restore()
	}
	failed := r.runAll(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := tracker.Flush(flushCtx); err != nil {
		log.Warn("pending events not flushed", zap.Error(err))
	}
	unsubscribe()
	printed.Wait()

	stats := h.Stats()
	log.Info("nettrack finished",
		zap.Int64("events", stats.Total),
		zap.Int64("evicted", stats.Evicted()),
		zap.Int("failed_requests", failed))
	if failed > 0 {
		return errors.Errorf("%d of %d requests failed", failed, len(cfg.URLs))
	}
	return nil
}

// newHTTPClient returns a client honoring the timeout and egress settings.
func newHTTPClient(cfg *config.Config, log *zap.Logger) *http.Client {
	c := &http.Client{Timeout: cfg.Timeout}
	if cfg.BlockPrivate {
		c.Transport = egress.NewGuard(
			egress.WithAllowHosts(cfg.AllowHosts...),
			egress.WithLogger(log)).Transport()
	}
	return c
}

type requester struct {
	cfg    *config.Config
	env    *network.Env
	client *http.Client
	log    *zap.Logger

	mu     sync.Mutex
	failed int
}

// runAll issues every URL with bounded concurrency and returns how many failed.
// A failed request is logged and does not stop the others.
func (r *requester) runAll(ctx context.Context) int {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, u := range r.cfg.URLs {
		u := u
		g.Go(func() error {
			status, err := r.issue(gctx, u)
			if err != nil {
				r.log.Warn("request failed", zap.String("url", u), zap.Error(err))
				r.mu.Lock()
				r.failed++
				r.mu.Unlock()
				return nil
			}
			r.log.Debug("request completed", zap.String("url", u), zap.Int("status", status))
			return nil
		})
	}
	_ = g.Wait()
	return r.failed
}

func (r *requester) issue(ctx context.Context, rawURL string) (int, error) {
	switch r.cfg.Mode {
	case config.ModeXHR:
		return r.issueXHR(ctx, rawURL)
	case config.ModeClient:
		return r.issueClient(ctx, rawURL)
	default:
		return r.issueFetch(ctx, rawURL)
	}
}

func (r *requester) body() any {
	if r.cfg.Body == "" {
		return nil
	}
	return r.cfg.Body
}

func (r *requester) issueFetch(ctx context.Context, rawURL string) (int, error) {
	resp, err := r.env.Fetch(ctx, rawURL, &network.RequestInit{Method: r.cfg.Method, Body: r.body()})
	if err != nil {
		return 0, err
	}
	return consume(resp)
}

func (r *requester) issueXHR(ctx context.Context, rawURL string) (int, error) {
	x := r.env.NewXHR()
	if err := x.Open(r.cfg.Method, rawURL); err != nil {
		return 0, err
	}
	if err := x.Send(r.body()); err != nil {
		return 0, err
	}
	if err := x.Wait(ctx); err != nil {
		x.Abort()
		return 0, err
	}
	if err := x.Err(); err != nil {
		return 0, err
	}
	return x.Status(), nil
}

func (r *requester) issueClient(ctx context.Context, rawURL string) (int, error) {
	var body io.Reader
	if r.cfg.Body != "" {
		body = strings.NewReader(r.cfg.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.cfg.Method, rawURL, body)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	return consume(resp)
}

// consume reads the body to the end so the captured record is completed.
func consume(resp *http.Response) (int, error) {
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return resp.StatusCode, errors.Wrap(err, "read body")
	}
	return resp.StatusCode, nil
}
