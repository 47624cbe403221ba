package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// handleExtract runs the full admission-gated extraction path: acquire a
// slot, invoke the tool, pick formats, resolve fragments, build manifests.
// The slot is released on every exit, including timeout and panic-free error
// paths, via the deferred Release.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter: url")
		return
	}
	if req.MaxVideoHeight <= 0 {
		req.MaxVideoHeight = 720
	}

	log := s.log.With("request_id", uuid.New().String(), "url", req.URL)

	slot, err := s.admission.Acquire(r.Context())
	if err != nil {
		var overload *OverloadError
		if errors.As(err, &overload) {
			log.Warn("request rejected, queue timeout", "active", overload.Active)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":              overload.Error(),
				"active_extractions": overload.Active,
				"retry":              true,
			})
			return
		}
		// Caller went away while queued; nobody is reading the response.
		log.Debug("request abandoned in queue", "error", err)
		return
	}
	defer slot.Release()

	log.Info("processing extraction", "max_video_height", req.MaxVideoHeight, "active", s.stats.Active())

	info, err := s.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		s.stats.MarkFailed()
		log.Error("extraction failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	videoFormat, err := s.selector.SelectVideo(info.Formats, req.MaxVideoHeight)
	if err != nil {
		s.stats.MarkFailed()
		log.Error("video selection failed", "formats", len(info.Formats), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	audioFormat, err := s.selector.SelectAudio(info.Formats)
	if err != nil {
		s.stats.MarkFailed()
		log.Error("audio selection failed", "formats", len(info.Formats), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Video and audio resolution share no mutable state; run them together.
	var (
		wg             sync.WaitGroup
		videoFragments []string
		audioFragments []string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		videoFragments = s.resolver.Resolve(r.Context(), videoFormat)
	}()
	go func() {
		defer wg.Done()
		audioFragments = s.resolver.Resolve(r.Context(), audioFormat)
	}()
	wg.Wait()

	var thumbnail *string
	if info.Thumbnail != "" {
		thumbnail = &info.Thumbnail
	}

	resp := ExtractResponse{
		Title:         info.Title,
		Duration:      int64(info.Duration),
		Thumbnail:     thumbnail,
		VideoManifest: buildManifest(videoFormat, videoFragments),
		AudioManifest: buildManifest(audioFormat, audioFragments),
	}

	log.Info("extraction complete",
		"title", info.Title,
		"video_format", videoFormat.FormatID,
		"audio_format", audioFormat.FormatID,
		"video_fragments", resp.VideoManifest.FragmentCount,
		"audio_fragments", resp.AudioManifest.FragmentCount)

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth probes the extraction tool and reports its version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	health := HealthResponse{
		Status:         "ok",
		CookiesPresent: fileExists(s.cfg.CookiesPath),
		Uptime:         time.Since(s.start).Round(time.Second).String(),
	}

	version, err := s.extractor.Version(r.Context())
	if err != nil {
		health.Status = "degraded"
		health.YtDlpVersion = "unavailable"
	} else {
		health.YtDlpVersion = version
	}

	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
