package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Playlist bodies are small text files; cap reads defensively.
const maxPlaylistBytes = 10 * 1024 * 1024

// newHTTPClient builds the shared outbound client with sane transport limits.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 5,
		},
	}
}

// FragmentResolver turns one selected format into its ordered fragment URL
// list, expanding playlist-style manifests over the network when needed.
type FragmentResolver struct {
	client  *http.Client
	timeout time.Duration
	log     *slog.Logger
}

func NewFragmentResolver(client *http.Client, timeout time.Duration, log *slog.Logger) *FragmentResolver {
	return &FragmentResolver{client: client, timeout: timeout, log: log}
}

// Resolve never fails: a format with neither fragments nor a direct URL
// yields an empty list, and playlist expansion errors fall back to the
// original reference.
func (r *FragmentResolver) Resolve(ctx context.Context, f *FormatInfo) []string {
	if len(f.Fragments) > 0 {
		urls := make([]string, 0, len(f.Fragments))
		for _, frag := range f.Fragments {
			switch {
			case frag.URL != "":
				urls = append(urls, frag.URL)
			case frag.Path != "":
				urls = append(urls, frag.Path)
			}
		}

		if len(urls) == 1 && isPlaylistRef(urls[0]) {
			if segments := r.expandPlaylist(ctx, urls[0]); len(segments) > 0 {
				return segments
			}
		}
		return urls
	}

	if f.URL != "" {
		if isPlaylistRef(f.URL) {
			if segments := r.expandPlaylist(ctx, f.URL); len(segments) > 0 {
				return segments
			}
		}
		return []string{f.URL}
	}

	return nil
}

// expandPlaylist fetches a manifest and returns its segment URLs in file
// order. Any fetch or parse problem is absorbed: the caller falls back to the
// manifest reference itself.
func (r *FragmentResolver) expandPlaylist(ctx context.Context, manifestURL string) []string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		r.log.Warn("playlist request build failed", "error", err)
		return nil
	}
	// Some origins reject unidentified clients.
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("playlist fetch failed", "url", manifestURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("playlist fetch rejected", "url", manifestURL, "status", resp.StatusCode)
		return nil
	}

	segments, err := parsePlaylist(io.LimitReader(resp.Body, maxPlaylistBytes), manifestURL)
	if err != nil {
		r.log.Warn("playlist parse failed", "url", manifestURL, "error", err)
		return nil
	}
	r.log.Debug("playlist expanded", "url", manifestURL, "segments", len(segments))
	return segments
}

// parsePlaylist reads line-oriented playlist text. Blank lines and comment
// lines are skipped; relative entries resolve against the manifest's own base
// path. Output order is playback order and is preserved exactly.
func parsePlaylist(body io.Reader, manifestURL string) ([]string, error) {
	base := manifestURL
	if idx := strings.LastIndex(manifestURL, "/"); idx >= 0 {
		base = manifestURL[:idx+1]
	}

	var segments []string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http") {
			segments = append(segments, line)
		} else {
			segments = append(segments, base+line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan playlist: %w", err)
	}
	return segments, nil
}
