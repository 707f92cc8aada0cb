package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prism/internal/catalog"
	"prism/internal/config"
	"prism/internal/ffmpeg"
	"prism/internal/logging"
	"prism/internal/realtime"
	"prism/internal/retriever"
	"prism/internal/storage"
)

type fakeEncoder struct {
	transcodeFn func(ctx context.Context, req ffmpeg.TranscodeRequest, progress ffmpeg.ProgressFunc) error
	frameFn     func(ctx context.Context, inputPath, outputPath string, second float64, width, height int) error
	spritesFn   func(ctx context.Context, req ffmpeg.SpriteRequest) error
}

func (f *fakeEncoder) Transcode(ctx context.Context, req ffmpeg.TranscodeRequest, progress ffmpeg.ProgressFunc) error {
	if f.transcodeFn == nil {
		return nil
	}
	return f.transcodeFn(ctx, req, progress)
}

func (f *fakeEncoder) ExtractFrame(ctx context.Context, inputPath, outputPath string, second float64, width, height int) error {
	if f.frameFn == nil {
		return nil
	}
	return f.frameFn(ctx, inputPath, outputPath, second, width, height)
}

func (f *fakeEncoder) GenerateSprites(ctx context.Context, req ffmpeg.SpriteRequest) error {
	if f.spritesFn == nil {
		return nil
	}
	return f.spritesFn(ctx, req)
}

type capturePublisher struct {
	messages []realtime.Message
}

func (p *capturePublisher) Publish(_ context.Context, msg realtime.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturePublisher) statuses() []string {
	var out []string
	for _, msg := range p.messages {
		if status, ok := msg.Payload["status"].(string); ok {
			out = append(out, status)
		}
	}
	return out
}

type captureEvictor struct {
	resources []string
}

func (e *captureEvictor) Evict(_ context.Context, resource string) error {
	e.resources = append(e.resources, resource)
	return nil
}

type harness struct {
	controller *Controller
	store      *catalog.Store
	cfg        *config.Config
	publisher  *capturePublisher
	evictor    *captureEvictor
}

func newHarness(t *testing.T, encoder ffmpeg.Client) *harness {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.FilesRoot = filepath.Join(base, "files")
	cfg.Paths.VideosRoot = filepath.Join(base, "videos")
	cfg.Paths.CatalogPath = filepath.Join(base, "catalog.db")
	cfg.PublicHost = "http://localhost/"
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.FilesRoot, cfg.Paths.VideosRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	store, err := catalog.Open(cfg.Paths.CatalogPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	publisher := &capturePublisher{}
	evictor := &captureEvictor{}
	controller := New(
		cfg,
		store,
		retriever.New(storage.NewLocal(cfg.Paths.FilesRoot), cfg, logging.NewNop()),
		encoder,
		publisher,
		storage.NewLocal(cfg.Paths.VideosRoot),
		evictor,
		logging.NewNop(),
	)
	return &harness{
		controller: controller,
		store:      store,
		cfg:        cfg,
		publisher:  publisher,
		evictor:    evictor,
	}
}

// seedVideo creates a bucket, a plain stored source file, and a probed
// video record.
func (h *harness) seedVideo(t *testing.T, durationMillis int64) *catalog.Video {
	t.Helper()
	ctx := context.Background()

	bucket := &catalog.Bucket{FileSecurity: true, Permissions: []string{"read(any)"}}
	if err := h.store.CreateBucket(ctx, bucket); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.cfg.Paths.FilesRoot, "source.mp4"), []byte("fake media"), 0o644); err != nil {
		t.Fatal(err)
	}
	file := &catalog.File{
		BucketID:    bucket.ID,
		Name:        "source.mp4",
		Path:        "source.mp4",
		Permissions: []string{"read(user:a)"},
	}
	if err := h.store.CreateFile(ctx, file); err != nil {
		t.Fatal(err)
	}
	video := &catalog.Video{
		BucketID: bucket.ID,
		FileID:   file.ID,
		Duration: durationMillis,
		Width:    1920,
		Height:   1080,
	}
	if err := h.store.CreateVideo(ctx, video); err != nil {
		t.Fatal(err)
	}
	return video
}

func (h *harness) seedSubtitle(t *testing.T, video *catalog.Video, code string) *catalog.Subtitle {
	t.Helper()
	ctx := context.Background()

	srt := "1\n00:00:01,000 --> 00:00:03,000\nHello.\n"
	name := "track-" + code + ".srt"
	if err := os.WriteFile(filepath.Join(h.cfg.Paths.FilesRoot, name), []byte(srt), 0o644); err != nil {
		t.Fatal(err)
	}
	file := &catalog.File{BucketID: video.BucketID, Name: name, Path: name}
	if err := h.store.CreateFile(ctx, file); err != nil {
		t.Fatal(err)
	}
	subtitle := &catalog.Subtitle{
		VideoID: video.ID,
		FileID:  file.ID,
		Name:    "English",
		Code:    code,
	}
	if err := h.store.CreateSubtitle(ctx, subtitle); err != nil {
		t.Fatal(err)
	}
	return subtitle
}

func hlsTranscode(t *testing.T, subtitleCode string) func(context.Context, ffmpeg.TranscodeRequest, ffmpeg.ProgressFunc) error {
	return func(_ context.Context, req ffmpeg.TranscodeRequest, progress ffmpeg.ProgressFunc) error {
		// 5 and 34 are swallowed by the multiple-of-3 gate.
		for _, percent := range []int{5, 34, 66, 99} {
			progress(percent)
		}

		variant := req.VideoID + "_0_576p.m3u8"
		seg1 := req.VideoID + "_0_576p_00001.ts"
		seg2 := req.VideoID + "_0_576p_00002.ts"
		master := "#EXTM3U\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=2666000,RESOLUTION=1024x576,CODECS=\"avc1.640028,mp4a.40.2\"\n" +
			variant + "\n"
		playlist := "#EXTM3U\n#EXT-X-TARGETDURATION:8\n" +
			"#EXTINF:8.000000,\n" + seg1 + "\n" +
			"#EXTINF:4.500000,\n" + seg2 + "\n" +
			"#EXT-X-ENDLIST\n"

		files := map[string]string{
			"master.m3u8": master,
			variant:       playlist,
			seg1:          "seg1",
			seg2:          "seg2",
		}
		if subtitleCode != "" {
			subPlaylist := "#EXTM3U\n#EXT-X-TARGETDURATION:8\n" +
				"#EXTINF:8.000000,\n" + req.VideoID + "_subtitles_" + subtitleCode + "_00001.vtt\n"
			files[req.VideoID+"_subtitles_"+subtitleCode+".m3u8"] = subPlaylist
			files[req.VideoID+"_subtitles_"+subtitleCode+"_00001.vtt"] = "WEBVTT\n"
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		return nil
	}
}

func TestProcessRenditionHLS(t *testing.T) {
	encoder := &fakeEncoder{}
	encoder.transcodeFn = hlsTranscode(t, "eng")
	h := newHarness(t, encoder)
	ctx := context.Background()

	video := h.seedVideo(t, 900_000)
	subtitle := h.seedSubtitle(t, video, "eng")

	err := h.controller.Process(ctx, Job{
		VideoID: video.ID,
		Output:  catalog.OutputHLS,
		Profile: catalog.Profile{ID: "p1", Width: 1024, Height: 576, VideoBitRate: 2538, AudioBitRate: 128},
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	renditions, err := h.store.ListRenditions(ctx, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(renditions) != 1 {
		t.Fatalf("renditions: got %d", len(renditions))
	}
	rendition := renditions[0]
	if rendition.Status != catalog.StatusReady {
		t.Fatalf("status: %q", rendition.Status)
	}
	if rendition.Name != "1024X576@2666" {
		t.Fatalf("name: %q", rendition.Name)
	}
	if rendition.Progress != 100 {
		t.Fatalf("progress: %d", rendition.Progress)
	}
	if rendition.TargetDuration != 8 {
		t.Fatalf("target duration: %d", rendition.TargetDuration)
	}
	wantPath := video.ID + "/" + rendition.Name + "-" + rendition.ID + "/"
	if rendition.Path != wantPath {
		t.Fatalf("path: got %q, want %q", rendition.Path, wantPath)
	}
	if !strings.Contains(rendition.Metadata, `"hls"`) {
		t.Fatalf("metadata: %q", rendition.Metadata)
	}

	segments, err := h.store.ListSegments(ctx, rendition.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 2 {
		t.Fatalf("segments: got %d", len(segments))
	}
	if segments[0].StreamID != 0 || segments[0].Duration != 8 {
		t.Fatalf("first segment: %+v", segments[0])
	}
	if segments[1].Duration != 4.5 {
		t.Fatalf("second segment: %+v", segments[1])
	}

	got, err := h.store.GetSubtitle(ctx, subtitle.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != catalog.StatusReady {
		t.Fatalf("subtitle status: %q", got.Status)
	}
	if got.TargetDuration != 8 {
		t.Fatalf("subtitle target duration: %d", got.TargetDuration)
	}
	if got.Path != video.ID+"/subtitles/" {
		t.Fatalf("subtitle path: %q", got.Path)
	}
	subSegments, err := h.store.ListSubtitleSegments(ctx, subtitle.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(subSegments) != 1 {
		t.Fatalf("subtitle segments: got %d", len(subSegments))
	}

	// Status transitions follow the success path in order.
	statuses := h.publisher.statuses()
	want := []string{"started", "started", "started", "ended", "uploading", "ready"}
	if len(statuses) != len(want) {
		t.Fatalf("published statuses: %v", statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("published statuses: got %v, want %v", statuses, want)
		}
	}

	// Transcode progress is only observable at multiples of 3.
	for _, msg := range h.publisher.messages[1:3] {
		progress, ok := msg.Payload["progress"].(int)
		if !ok || progress%3 != 0 {
			t.Fatalf("published progress %v not a multiple of 3", msg.Payload["progress"])
		}
	}

	// Roles merge bucket and file permissions under file security.
	roles := h.publisher.messages[0].Roles
	if len(roles) != 2 || roles[0] != "read(any)" || roles[1] != "read(user:a)" {
		t.Fatalf("roles: %v", roles)
	}

	// Artifacts land under the rendition prefix, subtitles under the
	// shared subtitles prefix.
	renditionDir := filepath.Join(h.cfg.Paths.VideosRoot, video.ID, rendition.Name+"-"+rendition.ID)
	for _, name := range []string{"master.m3u8", video.ID + "_0_576p.m3u8", video.ID + "_0_576p_00001.ts"} {
		if _, err := os.Stat(filepath.Join(renditionDir, name)); err != nil {
			t.Fatalf("missing uploaded artifact %s: %v", name, err)
		}
	}
	subtitlesDir := filepath.Join(h.cfg.Paths.VideosRoot, video.ID, "subtitles")
	if _, err := os.Stat(filepath.Join(subtitlesDir, video.ID+"_subtitles_eng.m3u8")); err != nil {
		t.Fatalf("missing subtitle playlist: %v", err)
	}

	assertWorkspaceRemoved(t, h)
}

func TestProcessRenditionDASH(t *testing.T) {
	encoder := &fakeEncoder{}
	encoder.transcodeFn = func(_ context.Context, req ffmpeg.TranscodeRequest, progress ffmpeg.ProgressFunc) error {
		progress(51)
		mpd := `<?xml version="1.0"?>
<MPD type="static">
	<Period>
		<AdaptationSet contentType="video">
			<Initialization sourceURL="init-stream0.m4s"/>
			<SegmentURL media="chunk-stream0-00001.m4s"/>
		</AdaptationSet>
		<AdaptationSet contentType="audio">
			<SegmentURL media="chunk-stream1-00001.m4s"/>
		</AdaptationSet>
	</Period>
</MPD>`
		files := map[string]string{
			req.VideoID + ".mpd":       mpd,
			"init-stream0.m4s":        "init",
			"chunk-stream0-00001.m4s": "seg",
			"chunk-stream1-00001.m4s": "seg",
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		return nil
	}
	h := newHarness(t, encoder)
	ctx := context.Background()

	video := h.seedVideo(t, 600_000)
	err := h.controller.Process(ctx, Job{
		VideoID: video.ID,
		Output:  catalog.OutputDASH,
		Profile: catalog.Profile{ID: "p1", Width: 1024, Height: 576, VideoBitRate: 2538, AudioBitRate: 128},
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	renditions, err := h.store.ListRenditions(ctx, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	rendition := renditions[0]
	if rendition.Status != catalog.StatusReady {
		t.Fatalf("status: %q", rendition.Status)
	}
	if !strings.Contains(rendition.Metadata, `"mpd"`) {
		t.Fatalf("metadata: %q", rendition.Metadata)
	}

	segments, err := h.store.ListSegments(ctx, rendition.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 3 {
		t.Fatalf("segments: got %d", len(segments))
	}
	if !segments[0].IsInit || segments[0].StreamID != 0 {
		t.Fatalf("first segment: %+v", segments[0])
	}
	if segments[2].StreamID != 1 || segments[2].IsInit {
		t.Fatalf("third segment: %+v", segments[2])
	}

	assertWorkspaceRemoved(t, h)
}

func TestProcessRenditionErrorIsTerminalState(t *testing.T) {
	encoder := &fakeEncoder{}
	encoder.transcodeFn = func(context.Context, ffmpeg.TranscodeRequest, ffmpeg.ProgressFunc) error {
		return &ffmpeg.Error{Op: "transcode", Err: errors.New(strings.Repeat("x", 400))}
	}
	h := newHarness(t, encoder)
	ctx := context.Background()

	video := h.seedVideo(t, 600_000)
	err := h.controller.Process(ctx, Job{
		VideoID: video.ID,
		Output:  catalog.OutputDASH,
		Profile: catalog.Profile{ID: "p1", Width: 1024, Height: 576, VideoBitRate: 2538, AudioBitRate: 128},
	})
	if err != nil {
		t.Fatalf("stage failures must not propagate, got %v", err)
	}

	renditions, err := h.store.ListRenditions(ctx, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	rendition := renditions[0]
	if rendition.Status != catalog.StatusError {
		t.Fatalf("status: %q", rendition.Status)
	}

	var metadata struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(rendition.Metadata), &metadata); err != nil {
		t.Fatalf("metadata: %v (%q)", err, rendition.Metadata)
	}
	if metadata.Code != "transcode" {
		t.Fatalf("code: %q", metadata.Code)
	}
	if len(metadata.Message) > 255 {
		t.Fatalf("message not truncated: %d chars", len(metadata.Message))
	}

	statuses := h.publisher.statuses()
	if statuses[len(statuses)-1] != "error" {
		t.Fatalf("statuses: %v", statuses)
	}

	assertWorkspaceRemoved(t, h)
}

func TestProcessPreviewCreateThenUpdate(t *testing.T) {
	encoder := &fakeEncoder{}
	encoder.frameFn = func(_ context.Context, _, outputPath string, _ float64, _, _ int) error {
		return os.WriteFile(outputPath, []byte("jpeg bytes"), 0o644)
	}
	h := newHarness(t, encoder)
	ctx := context.Background()

	video := h.seedVideo(t, 600_000)
	if err := h.controller.Process(ctx, Job{VideoID: video.ID, Action: ActionPreview, Second: 6}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	preview, err := h.store.FindPreview(ctx, video.ID, catalog.PreviewTypePreview, "preview.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if preview.Second != 6 {
		t.Fatalf("second: %d", preview.Second)
	}

	stored, err := h.store.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.PreviewID != preview.ID {
		t.Fatalf("preview id not recorded: %q", stored.PreviewID)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.VideosRoot, video.ID, "preview", "preview.jpg")); err != nil {
		t.Fatalf("preview not uploaded: %v", err)
	}
	if len(h.evictor.resources) != 0 {
		t.Fatalf("unexpected eviction on create: %v", h.evictor.resources)
	}

	// Second run updates the frame offset and evicts the cached image.
	if err := h.controller.Process(ctx, Job{VideoID: video.ID, Action: ActionPreview, Second: 9}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	updated, err := h.store.FindPreview(ctx, video.ID, catalog.PreviewTypePreview, "preview.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != preview.ID || updated.Second != 9 {
		t.Fatalf("updated preview: %+v", updated)
	}
	if len(h.evictor.resources) != 1 || h.evictor.resources[0] != "preview/"+preview.ID {
		t.Fatalf("evictions: %v", h.evictor.resources)
	}

	assertWorkspaceRemoved(t, h)
}

func TestProcessTimeline(t *testing.T) {
	encoder := &fakeEncoder{}
	encoder.spritesFn = func(_ context.Context, req ffmpeg.SpriteRequest) error {
		dir := filepath.Dir(req.OutputPattern)
		for sheet := 1; sheet <= 4; sheet++ {
			name := fmt.Sprintf("sprite%d.jpg", sheet)
			if err := os.WriteFile(filepath.Join(dir, name), []byte("sheet"), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
	h := newHarness(t, encoder)
	ctx := context.Background()

	// 15 minutes selects the 10s interval bucket: 90 tiles over 25-tile
	// sheets makes 4 sheets.
	video := h.seedVideo(t, 900_000)
	if err := h.controller.Process(ctx, Job{VideoID: video.ID, Action: ActionTimeline}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	first, err := h.store.FindPreview(ctx, video.ID, catalog.PreviewTypeSprite, "sprite1.jpg")
	if err != nil {
		t.Fatal(err)
	}
	for sheet := 2; sheet <= 4; sheet++ {
		if _, err := h.store.FindPreview(ctx, video.ID, catalog.PreviewTypeSprite, fmt.Sprintf("sprite%d.jpg", sheet)); err != nil {
			t.Fatalf("sprite %d record: %v", sheet, err)
		}
	}

	timelineDir := filepath.Join(h.cfg.Paths.VideosRoot, video.ID, "timeline")
	cues, err := os.ReadFile(filepath.Join(timelineDir, "timeline.vtt"))
	if err != nil {
		t.Fatalf("cue sheet not uploaded: %v", err)
	}
	content := string(cues)
	if !strings.HasPrefix(content, "WEBVTT") {
		t.Fatalf("cue sheet header:\n%.80s", content)
	}
	wantURL := "http://localhost/v1/videos/" + video.ID + "/preview/" + first.ID + "/#xywh=0,0,160,90"
	if !strings.Contains(content, wantURL) {
		t.Fatalf("cue sheet missing %q:\n%.400s", wantURL, content)
	}
	for sheet := 1; sheet <= 4; sheet++ {
		if _, err := os.Stat(filepath.Join(timelineDir, fmt.Sprintf("sprite%d.jpg", sheet))); err != nil {
			t.Fatalf("sprite %d not uploaded: %v", sheet, err)
		}
	}

	assertWorkspaceRemoved(t, h)
}

func TestProcessTimelineToleratesMissingSheets(t *testing.T) {
	encoder := &fakeEncoder{}
	encoder.spritesFn = func(_ context.Context, req ffmpeg.SpriteRequest) error {
		// Emit only the first of the planned sheets, as ffmpeg does when
		// the source runs out of frames.
		return os.WriteFile(filepath.Join(filepath.Dir(req.OutputPattern), "sprite1.jpg"), []byte("sheet"), 0o644)
	}
	h := newHarness(t, encoder)
	ctx := context.Background()

	video := h.seedVideo(t, 900_000)
	if err := h.controller.Process(ctx, Job{VideoID: video.ID, Action: ActionTimeline}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	timelineDir := filepath.Join(h.cfg.Paths.VideosRoot, video.ID, "timeline")
	if _, err := os.Stat(filepath.Join(timelineDir, "timeline.vtt")); err != nil {
		t.Fatalf("cue sheet not uploaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(timelineDir, "sprite1.jpg")); err != nil {
		t.Fatalf("first sheet not uploaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(timelineDir, "sprite2.jpg")); err == nil {
		t.Fatal("phantom sheet uploaded")
	}
}

func assertWorkspaceRemoved(t *testing.T, h *harness) {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.Paths.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace not cleaned up: %d entries remain", len(entries))
	}
}
