// Package manifest parses the playlists and MPD documents the encoder
// writes, recovering segment and variant structure for the catalog.
//
// The parsers are pure line-oriented scanners keyed on the literal tokens
// ffmpeg emits (#EXT-X-TARGETDURATION, #EXTINF, <AdaptationSet,
// <SegmentURL media=, <Initialization sourceURL=). They read a file and
// return plain values; all persistence happens in the pipeline.
package manifest
