package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoVideoFormat means no video format satisfied the height ceiling,
	// even after widening to muxed formats.
	ErrNoVideoFormat = errors.New("no suitable video format")
	// ErrNoAudioFormat means the format list has no audio-only entry.
	ErrNoAudioFormat = errors.New("no audio-only format found")
)

// Selector picks video and audio formats from an extractor format list.
// Container preference is configuration: extensions earlier in the list rank
// higher, anything unlisted ranks zero.
type Selector struct {
	videoExtRank map[string]int
	audioExtPref map[string]bool
}

func NewSelector(videoExts, audioExts []string) *Selector {
	s := &Selector{
		videoExtRank: make(map[string]int, len(videoExts)),
		audioExtPref: make(map[string]bool, len(audioExts)),
	}
	for i, ext := range videoExts {
		s.videoExtRank[strings.ToLower(ext)] = len(videoExts) - i
	}
	for _, ext := range audioExts {
		s.audioExtPref[strings.ToLower(ext)] = true
	}
	return s
}

// SelectVideo returns the best format with a video codec and height at or
// below maxHeight. Video-only formats are preferred; when none fit the
// ceiling, the candidate pool widens to muxed formats.
func (s *Selector) SelectVideo(formats []FormatInfo, maxHeight int) (*FormatInfo, error) {
	candidates := filterVideo(formats, maxHeight, false)
	if len(candidates) == 0 {
		candidates = filterVideo(formats, maxHeight, true)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w with height <= %d", ErrNoVideoFormat, maxHeight)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return s.scoreVideo(candidates[i]).greaterThan(s.scoreVideo(candidates[j]))
	})
	return candidates[0], nil
}

// SelectAudio returns the best audio-only format, preferring configured
// container extensions and then the highest audio bitrate. Ties keep input
// order.
func (s *Selector) SelectAudio(formats []FormatInfo) (*FormatInfo, error) {
	var candidates []*FormatInfo
	for i := range formats {
		f := &formats[i]
		if !f.hasVideoCodec() && f.hasAudioCodec() {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoAudioFormat
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := s.audioExtPref[strings.ToLower(candidates[i].Ext)], s.audioExtPref[strings.ToLower(candidates[j].Ext)]
		if pi != pj {
			return pi
		}
		return candidates[i].ABR > candidates[j].ABR
	})
	return candidates[0], nil
}

func filterVideo(formats []FormatInfo, maxHeight int, allowMuxed bool) []*FormatInfo {
	var out []*FormatInfo
	for i := range formats {
		f := &formats[i]
		if !f.hasVideoCodec() || f.Height == nil || *f.Height > maxHeight {
			continue
		}
		if !allowMuxed && f.hasAudioCodec() {
			continue
		}
		out = append(out, f)
	}
	return out
}

// videoScore is compared lexicographically, highest wins.
type videoScore struct {
	directness int
	extRank    int
	height     int
	tbr        float64
}

func (a videoScore) greaterThan(b videoScore) bool {
	if a.directness != b.directness {
		return a.directness > b.directness
	}
	if a.extRank != b.extRank {
		return a.extRank > b.extRank
	}
	if a.height != b.height {
		return a.height > b.height
	}
	return a.tbr > b.tbr
}

func (s *Selector) scoreVideo(f *FormatInfo) videoScore {
	height := 0
	if f.Height != nil {
		height = *f.Height
	}
	return videoScore{
		directness: directnessRank(f),
		extRank:    s.videoExtRank[strings.ToLower(f.Ext)],
		height:     height,
		tbr:        f.TBR,
	}
}

// directnessRank orders formats by how directly their media can be fetched:
// 3 for explicit fragment lists (or a single direct HTTPS fragment), 2 for a
// direct progressive URL, 1 for playlist-only access.
func directnessRank(f *FormatInfo) int {
	if len(f.Fragments) > 1 {
		return 3
	}
	if len(f.Fragments) == 1 {
		u := f.Fragments[0].URL
		if strings.HasPrefix(u, "https://") && !strings.Contains(strings.ToLower(u), "manifest") {
			return 3
		}
	}
	if f.URL != "" && !playlistStyleURL(f.URL) {
		return 2
	}
	return 1
}

// playlistStyleURL is the scoring-time playlist check. Unlike isPlaylistRef
// it only treats .m3u8 as a suffix, so a media URL carrying the extension
// mid-path or before a query string still counts as direct.
func playlistStyleURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "manifest") || strings.HasSuffix(lower, ".m3u8")
}
