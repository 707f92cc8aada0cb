package catalog

const schema = `
CREATE TABLE IF NOT EXISTS videos (
    id TEXT PRIMARY KEY,
    bucket_id TEXT,
    file_id TEXT,
    duration INTEGER NOT NULL DEFAULT 0,
    format TEXT,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    aspect_ratio TEXT,
    video_format TEXT,
    video_format_profile TEXT,
    video_frame_rate TEXT,
    video_frame_rate_mode TEXT,
    video_bit_rate INTEGER NOT NULL DEFAULT 0,
    audio_format TEXT,
    audio_sample_rate TEXT,
    audio_bit_rate INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL DEFAULT 0,
    preview_id TEXT
);

CREATE TABLE IF NOT EXISTS renditions (
    id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    profile_id TEXT,
    name TEXT,
    status TEXT NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    started_at TEXT,
    ended_at TEXT,
    output TEXT,
    path TEXT,
    metadata TEXT,
    target_duration INTEGER NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    video_bit_rate INTEGER NOT NULL DEFAULT 0,
    audio_bit_rate INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_renditions_video ON renditions(video_id);

CREATE TABLE IF NOT EXISTS rendition_segments (
    id TEXT PRIMARY KEY,
    rendition_id TEXT NOT NULL,
    stream_id INTEGER NOT NULL DEFAULT 0,
    file_name TEXT NOT NULL,
    path TEXT,
    duration REAL NOT NULL DEFAULT 0,
    is_init INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_segments_rendition ON rendition_segments(rendition_id);

CREATE TABLE IF NOT EXISTS subtitles (
    id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    bucket_id TEXT,
    file_id TEXT,
    name TEXT,
    code TEXT,
    status TEXT NOT NULL DEFAULT '',
    path TEXT,
    target_duration INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_subtitles_video ON subtitles(video_id);

CREATE TABLE IF NOT EXISTS subtitle_segments (
    id TEXT PRIMARY KEY,
    subtitle_id TEXT NOT NULL,
    file_name TEXT NOT NULL,
    path TEXT,
    duration REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_subtitle_segments_subtitle ON subtitle_segments(subtitle_id);

CREATE TABLE IF NOT EXISTS previews (
    id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    path TEXT,
    second INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_previews_key ON previews(video_id, type, name);

CREATE TABLE IF NOT EXISTS buckets (
    id TEXT PRIMARY KEY,
    file_security INTEGER NOT NULL DEFAULT 0,
    permissions TEXT
);

CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    bucket_id TEXT NOT NULL,
    name TEXT,
    path TEXT NOT NULL,
    mime_type TEXT,
    size INTEGER NOT NULL DEFAULT 0,
    cipher TEXT,
    cipher_version TEXT,
    iv_hex TEXT,
    tag_hex TEXT,
    algorithm TEXT,
    permissions TEXT
);
`
