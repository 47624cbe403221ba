package main

import "strings"

// FormatInfo is one entry of the extractor tool's formats array. The tool's
// JSON is loosely structured; any field may be missing, so absence decodes to
// the zero value (or nil for fields where zero is meaningful).
type FormatInfo struct {
	FormatID       string        `json:"format_id"`
	Ext            string        `json:"ext"`
	VCodec         string        `json:"vcodec"`
	ACodec         string        `json:"acodec"`
	URL            string        `json:"url"`
	Height         *int          `json:"height"`
	Width          *int          `json:"width"`
	FPS            *float64      `json:"fps"`
	TBR            float64       `json:"tbr"`
	ABR            float64       `json:"abr"`
	Filesize       *int64        `json:"filesize"`
	FilesizeApprox *int64        `json:"filesize_approx"`
	Fragments      []FragmentRef `json:"fragments"`
}

// FragmentRef is one fragment entry of a format. Some extractors emit "url",
// others "path"; order within the list is the download order.
type FragmentRef struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// ExtractInfo is the top-level document the extractor tool emits.
type ExtractInfo struct {
	Title     string       `json:"title"`
	Duration  float64      `json:"duration"`
	Thumbnail string       `json:"thumbnail"`
	Formats   []FormatInfo `json:"formats"`
}

func (f *FormatInfo) hasVideoCodec() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f *FormatInfo) hasAudioCodec() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// isPlaylistRef reports whether a URL points at a playlist-style manifest
// rather than directly at media bytes.
func isPlaylistRef(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "manifest") || strings.Contains(lower, ".m3u8")
}
