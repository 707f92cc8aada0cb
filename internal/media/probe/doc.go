// Package probe executes ffprobe against a retrieved asset and reshapes the
// JSON output into the metadata fields stored on video records.
package probe
