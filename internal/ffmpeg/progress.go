package ffmpeg

import (
	"strconv"
	"strings"
)

// progressReporter converts the -progress key/value stream into integer
// percentages. Despite the name, ffmpeg reports out_time_ms in
// microseconds, matching out_time_us.
type progressReporter struct {
	durationMicros int64
	callback       ProgressFunc
	last           int
}

func newProgressReporter(durationMillis int64, callback ProgressFunc) *progressReporter {
	return &progressReporter{
		durationMicros: durationMillis * 1000,
		callback:       callback,
		last:           -1,
	}
}

func (r *progressReporter) consume(line string) {
	if r == nil || r.callback == nil || r.durationMicros <= 0 {
		return
	}
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		elapsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || elapsed < 0 {
			return
		}
		r.report(int(elapsed * 100 / r.durationMicros))
	case "progress":
		if strings.TrimSpace(value) == "end" {
			r.report(100)
		}
	}
}

// finish reports completion for encodes whose progress stream ended
// without a terminal marker.
func (r *progressReporter) finish() {
	if r == nil || r.callback == nil {
		return
	}
	r.report(100)
}

func (r *progressReporter) report(percent int) {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 || percent <= r.last {
		return
	}
	r.last = percent
	r.callback(percent)
}
