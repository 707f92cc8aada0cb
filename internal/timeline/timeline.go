package timeline

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	tileWidth = 160
	gridCols  = 5
	gridRows  = 5
)

// intervalBuckets maps source duration in seconds to a sampling interval.
var intervalBuckets = []struct {
	from     float64
	to       float64
	interval int
}{
	{120, 600, 5},
	{600, 1800, 10},
	{1800, 3600, 20},
	{3600, math.MaxFloat64, 30},
}

// Interval returns the thumbnail sampling interval in seconds for a source
// of the given duration.
func Interval(durationMillis int64) int {
	seconds := float64(durationMillis) / 1000
	for _, bucket := range intervalBuckets {
		if seconds > bucket.from && seconds <= bucket.to {
			return bucket.interval
		}
	}
	return 2
}

// Layout describes the sprite sheets produced for one video.
type Layout struct {
	IntervalSeconds int
	TileWidth       int
	TileHeight      int
	Columns         int
	Rows            int
	Sheets          int
}

// Plan computes the sprite layout for a video: interval from the duration
// bucket, tile height from the source aspect ratio, and the sheet count
// needed to cover the full runtime.
func Plan(durationMillis int64, videoWidth, videoHeight int) Layout {
	layout := Layout{
		IntervalSeconds: Interval(durationMillis),
		TileWidth:       tileWidth,
		Columns:         gridCols,
		Rows:            gridRows,
	}
	if videoWidth > 0 && videoHeight > 0 {
		aspect := float64(videoWidth) / float64(videoHeight)
		layout.TileHeight = int(math.Round(tileWidth / aspect))
	}
	seconds := float64(durationMillis) / 1000
	if seconds > 0 {
		perSheet := float64(gridCols * gridRows)
		layout.Sheets = int(math.Ceil(seconds / float64(layout.IntervalSeconds) / perSheet))
	}
	return layout
}

// Tile returns the grid in the encoder's CxR form.
func (l Layout) Tile() string {
	return fmt.Sprintf("%dx%d", l.Columns, l.Rows)
}

// SheetName returns the file name of the 1-based nth sprite sheet.
func SheetName(n int) string {
	return fmt.Sprintf("sprite%d.jpg", n)
}

// BuildCues renders the WebVTT cue document covering every tile of every
// sheet. urlFor supplies the public image URL for the 1-based sheet number.
// Tiles advance left to right, then wrap to the next grid line.
func (l Layout) BuildCues(urlFor func(sheet int) string) string {
	var out strings.Builder
	out.WriteString("WEBVTT")

	counter := 0
	for sheet := 1; sheet <= l.Sheets; sheet++ {
		url := urlFor(sheet)
		for col := 0; col < l.Columns; col++ {
			for row := 0; row < l.Rows; row++ {
				start := formatCueTime(counter * l.IntervalSeconds)
				end := formatCueTime((counter + 1) * l.IntervalSeconds)
				fmt.Fprintf(&out, "\n%s --> %s\n%s#xywh=%d,%d,%d,%d",
					start, end,
					url,
					row*l.TileWidth, col*l.TileHeight, l.TileWidth, l.TileHeight,
				)
				counter++
			}
		}
	}
	return out.String()
}

func formatCueTime(seconds int) string {
	return time.Unix(int64(seconds), 0).UTC().Format("15:04:05")
}
