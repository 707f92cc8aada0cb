// Package realtime publishes rendition state transitions to the realtime
// gateway so players can react to transcode progress without polling.
//
// Publishing is fire-and-forget: the pipeline logs delivery failures but
// never fails a job over them. When no endpoint is configured a noop
// publisher is returned.
package realtime
