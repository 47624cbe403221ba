package main

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	URL            string `json:"url"`
	MaxVideoHeight int    `json:"max_video_height"`
}

// ManifestInfo describes one selected format and its fetchable fragments.
// URL is populated only for progressive formats with no fragment list.
type ManifestInfo struct {
	FormatID      string   `json:"format_id"`
	Ext           string   `json:"ext"`
	Resolution    string   `json:"resolution"`
	Height        *int     `json:"height"`
	Width         *int     `json:"width"`
	FPS           *float64 `json:"fps"`
	VCodec        string   `json:"vcodec"`
	ACodec        string   `json:"acodec"`
	TBR           float64  `json:"tbr"`
	ABR           float64  `json:"abr"`
	Filesize      *int64   `json:"filesize"`
	FragmentCount int      `json:"fragment_count"`
	Fragments     []string `json:"fragments"`
	URL           string   `json:"url,omitempty"`
}

// ExtractResponse is the success body of POST /extract.
type ExtractResponse struct {
	Title         string       `json:"title"`
	Duration      int64        `json:"duration"`
	Thumbnail     *string      `json:"thumbnail"`
	VideoManifest ManifestInfo `json:"video_manifest"`
	AudioManifest ManifestInfo `json:"audio_manifest"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	YtDlpVersion   string `json:"yt_dlp_version"`
	CookiesPresent bool   `json:"cookies_present"`
	Uptime         string `json:"uptime"`
}
