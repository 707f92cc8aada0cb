// Package catalog persists the worker's durable records in SQLite: videos,
// renditions and their segments, subtitle tracks and their segments,
// previews, and the bucket/file metadata needed to retrieve originals.
//
// The store follows a few fixed contracts the pipeline relies on:
//
//   - Rendition status only ever moves forward along
//     started → ended → uploading → ready, or started → error.
//   - Segment rows are append-only; nothing mutates them after creation.
//   - Video metadata written by the prober uses PatchVideo, which updates
//     only the fields the patch sets, never clearing populated ones.
//   - ClaimSubtitles is a conditional update from the empty status to
//     started, so two workers racing on the same video cannot both claim
//     a track.
//
// Treat this package as the single source of truth for record semantics;
// schema changes go through schema.go.
package catalog
