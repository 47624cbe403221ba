package main

import "fmt"

// buildManifest assembles the public manifest record for one selected format.
// The direct URL is carried only when no fragment list applies, so callers
// always have exactly one way to fetch the media.
func buildManifest(f *FormatInfo, fragments []string) ManifestInfo {
	if fragments == nil {
		fragments = []string{}
	}

	m := ManifestInfo{
		FormatID:      f.FormatID,
		Ext:           f.Ext,
		Resolution:    fmt.Sprintf("%sx%s", dimension(f.Width), dimension(f.Height)),
		Height:        f.Height,
		Width:         f.Width,
		FPS:           f.FPS,
		VCodec:        f.VCodec,
		ACodec:        f.ACodec,
		TBR:           f.TBR,
		ABR:           f.ABR,
		Filesize:      f.Filesize,
		FragmentCount: len(fragments),
		Fragments:     fragments,
	}
	if m.Filesize == nil {
		m.Filesize = f.FilesizeApprox
	}
	if len(fragments) == 0 {
		m.URL = f.URL
	}
	return m
}

func dimension(v *int) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *v)
}
