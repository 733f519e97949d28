package sprite

import (
	"fmt"
	"math"
	"strings"
)

// FormatTimestamp renders seconds as HH:MM:SS.mmm, truncating to whole milliseconds.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	// the epsilon keeps values like 0.3*3 from landing one millisecond short
	total := int64(math.Floor(seconds*1000 + 1e-6))
	ms := total % 1000
	s := (total / 1000) % 60
	m := (total / 60000) % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// BuildVTT produces the WebVTT cue track for frameCount frames sampled every interval seconds.
func BuildVTT(frameCount int, interval float64, geom Geometry, ext string) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	for i := 0; i < frameCount; i++ {
		start := float64(i) * interval
		end := float64(i+1) * interval
		sheet, x, y := geom.Cell(i)

		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(start), FormatTimestamp(end))
		fmt.Fprintf(&b, "%s#xywh=%d,%d,%d,%d\n\n", SheetFileName(sheet, ext), x, y, geom.TileWidth, geom.TileHeight)
	}
	return b.String()
}
