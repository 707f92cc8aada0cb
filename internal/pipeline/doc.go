// Package pipeline drives one transcoding job end to end: fetch and
// unwrap the source asset, probe metadata once, then either generate a
// side artifact (preview frame, sprite timeline) or produce a rendition —
// transcode, parse the manifests into segment records, upload the
// artifacts, and publish every status transition.
//
// Failures before a rendition record exists are fatal to the job and
// surface as a returned error. Once a rendition exists, any stage failure
// is caught exactly once at the controller boundary, recorded onto the
// rendition as terminal ERROR state, published, and the job returns
// normally so a bad asset can never crash the worker.
package pipeline
