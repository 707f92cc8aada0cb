// Package ffmpeg wraps the ffmpeg command line for rendition transcodes,
// still-frame extraction, and sprite sheet generation.
//
// Transcode drives one representation per run and reports throttled
// progress parsed from the -progress key/value stream. Output naming is
// fixed so the manifest scanners can locate master playlists, variant
// playlists, and per-subtitle playlists by pattern.
package ffmpeg
