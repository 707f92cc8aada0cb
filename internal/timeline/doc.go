// Package timeline plans scrub-preview sprite sheets and renders the
// matching WebVTT cue document.
//
// The sampling interval is bucketed by source duration so long videos do
// not explode into thousands of thumbnails. Each sheet is a fixed 5x5 grid
// of 160px-wide tiles; cues map playback ranges to #xywh fragments inside
// the sheet images.
package timeline
