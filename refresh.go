package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RefreshScheduler owns the two background maintenance loops: periodic
// credential refresh and periodic tool self-update. Loop failures are logged
// and swallowed; neither loop can terminate before shutdown.
type RefreshScheduler struct {
	cfg       Config
	client    *http.Client
	extractor *Extractor
	log       *slog.Logger
	wg        sync.WaitGroup
}

func NewRefreshScheduler(cfg Config, client *http.Client, extractor *Extractor, log *slog.Logger) *RefreshScheduler {
	return &RefreshScheduler{cfg: cfg, client: client, extractor: extractor, log: log}
}

// Start launches the loops. When a cookie URL is configured it also performs
// one synchronous refresh so the first extraction does not race the loop;
// that bootstrap failure is non-fatal.
func (r *RefreshScheduler) Start(ctx context.Context) {
	if r.cfg.CookiesURL != "" {
		if err := r.refreshCookies(ctx); err != nil {
			r.log.Warn("initial cookie refresh failed", "error", err)
		}
		r.wg.Add(1)
		go r.cookieLoop(ctx)
	}
	if r.cfg.ToolUpdateSec > 0 {
		r.wg.Add(1)
		go r.updateLoop(ctx)
	}
}

// Wait blocks until all loops have observed cancellation and returned.
func (r *RefreshScheduler) Wait() {
	r.wg.Wait()
}

func (r *RefreshScheduler) cookieLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.CookiesRefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.refreshCookies(ctx); err != nil {
				r.log.Warn("cookie refresh failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// updateLoop waits a full interval before the first update; the tool is
// fresh at deploy time.
func (r *RefreshScheduler) updateLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.ToolUpdateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.extractor.Update(ctx); err != nil {
				r.log.Warn("tool self-update failed", "error", err)
				continue
			}
			version, err := r.extractor.Version(ctx)
			if err != nil {
				r.log.Warn("tool version probe after update failed", "error", err)
				continue
			}
			r.log.Info("tool updated", "version", version)
		case <-ctx.Done():
			return
		}
	}
}

// refreshCookies downloads the credential file and replaces the on-disk copy
// atomically, so concurrent extraction invocations never read a half-written
// file.
func (r *RefreshScheduler) refreshCookies(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.CookiesURL, nil)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch cookies: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch cookies: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.cfg.CookiesPath), ".cookies-*")
	if err != nil {
		return fmt.Errorf("create temp cookie file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cookie file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.cfg.CookiesPath); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}

	r.log.Info("cookies refreshed", "bytes", n, "path", r.cfg.CookiesPath)
	return nil
}
