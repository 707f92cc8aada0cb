// Package subtitles prepares queued text tracks for muxing: SubRip sources
// are converted to WebVTT, and language codes are resolved to display names
// for the player track list.
package subtitles
