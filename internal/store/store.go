// SPDX-License-Identifier: MIT

// Package store persists video metadata in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Video is one published video and its playback metadata.
type Video struct {
	ID           string
	Name         string
	Tags         []string
	Resolutions  []string // ladder labels, e.g. ["480p","720p"]
	DurationSec  int
	ThumbnailKey string
	Entrypoint   string // object key of the master playlist
	CreatedAt    string
}

// Subtitle is an extracted subtitle track stored as an object.
type Subtitle struct {
	VideoID    string `json:"video_id"`
	TrackIndex int    `json:"track_index"`
	Language   string `json:"language,omitempty"`
	Title      string `json:"title,omitempty"`
	Codec      string `json:"codec"`
	StorageKey string `json:"storage_key"`
	Default    bool   `json:"is_default"`
	Forced     bool   `json:"is_forced"`
}

// Attachment is an embedded attachment (usually a font) stored as an
// object.
type Attachment struct {
	VideoID    string `json:"video_id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimetype"`
	StorageKey string `json:"storage_key"`
}

// Chapter is a chapter marker of a video.
type Chapter struct {
	VideoID      string  `json:"video_id"`
	ChapterIndex int     `json:"chapter_index"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Title        string  `json:"title"`
}

// VideoQuery filters and paginates ListVideos/CountVideos.
type VideoQuery struct {
	Page     int
	PageSize int
	Name     string // full-text match against name and tags
	Tag      string // exact tag match
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	available_resolutions TEXT NOT NULL DEFAULT '[]',
	duration INTEGER NOT NULL DEFAULT 0,
	thumbnail_key TEXT NOT NULL DEFAULT '',
	entrypoint TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE VIRTUAL TABLE IF NOT EXISTS videos_fts USING fts5(
	name, tags, content='videos', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS videos_fts_insert AFTER INSERT ON videos BEGIN
	INSERT INTO videos_fts(rowid, name, tags) VALUES (new.rowid, new.name, new.tags);
END;
CREATE TRIGGER IF NOT EXISTS videos_fts_delete AFTER DELETE ON videos BEGIN
	INSERT INTO videos_fts(videos_fts, rowid, name, tags) VALUES ('delete', old.rowid, old.name, old.tags);
END;
CREATE TRIGGER IF NOT EXISTS videos_fts_update AFTER UPDATE ON videos BEGIN
	INSERT INTO videos_fts(videos_fts, rowid, name, tags) VALUES ('delete', old.rowid, old.name, old.tags);
	INSERT INTO videos_fts(rowid, name, tags) VALUES (new.rowid, new.name, new.tags);
END;

CREATE TABLE IF NOT EXISTS subtitles (
	video_id TEXT NOT NULL,
	track_index INTEGER NOT NULL,
	language TEXT,
	title TEXT,
	codec TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	is_default INTEGER NOT NULL DEFAULT 0,
	is_forced INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (video_id, track_index)
);

CREATE TABLE IF NOT EXISTS attachments (
	video_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mimetype TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	PRIMARY KEY (video_id, filename)
);

CREATE TABLE IF NOT EXISTS chapters (
	video_id TEXT NOT NULL,
	chapter_index INTEGER NOT NULL,
	start_time REAL NOT NULL,
	end_time REAL NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (video_id, chapter_index)
);
`

// Open opens (creating if necessary) the database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent pipeline completions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalJSON(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// SaveVideo inserts a newly published video.
func (s *Store) SaveVideo(ctx context.Context, v Video) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (id, name, tags, available_resolutions, duration, thumbnail_key, entrypoint)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, marshalJSON(v.Tags), marshalJSON(v.Resolutions), v.DurationSec, v.ThumbnailKey, v.Entrypoint)
	if err != nil {
		return fmt.Errorf("save video %s: %w", v.ID, err)
	}
	return nil
}

// ftsQuery turns free text into a prefix-matching FTS5 query, quoting
// each term so user input cannot inject FTS syntax.
func ftsQuery(text string) string {
	var terms []string
	for _, t := range strings.Fields(text) {
		terms = append(terms, `"`+strings.ReplaceAll(t, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

func (q VideoQuery) where() (string, []any) {
	var clauses []string
	var args []any
	if q.Name != "" {
		clauses = append(clauses, "videos.rowid IN (SELECT rowid FROM videos_fts WHERE videos_fts MATCH ?)")
		args = append(args, ftsQuery(q.Name))
	}
	if q.Tag != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(videos.tags) WHERE json_each.value = ?)")
		args = append(args, q.Tag)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountVideos returns how many videos match the query filters.
func (s *Store) CountVideos(ctx context.Context, q VideoQuery) (int, error) {
	where, args := q.where()
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return total, nil
}

// ListVideos returns one page of videos matching the query, newest
// first.
func (s *Store) ListVideos(ctx context.Context, q VideoQuery) ([]Video, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	where, args := q.where()
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, tags, available_resolutions, duration, thumbnail_key, entrypoint, created_at
		 FROM videos`+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()
	return scanVideos(rows)
}

func scanVideos(rows *sql.Rows) ([]Video, error) {
	var out []Video
	for rows.Next() {
		var v Video
		var tags, resolutions string
		if err := rows.Scan(&v.ID, &v.Name, &tags, &resolutions, &v.DurationSec, &v.ThumbnailKey, &v.Entrypoint, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		v.Tags = unmarshalJSON(tags)
		v.Resolutions = unmarshalJSON(resolutions)
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVideo returns one video by exact ID.
func (s *Store) GetVideo(ctx context.Context, id string) (Video, bool, error) {
	var v Video
	var tags, resolutions string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tags, available_resolutions, duration, thumbnail_key, entrypoint, created_at
		 FROM videos WHERE id = ?`, id).
		Scan(&v.ID, &v.Name, &tags, &resolutions, &v.DurationSec, &v.ThumbnailKey, &v.Entrypoint, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, false, nil
	}
	if err != nil {
		return Video{}, false, fmt.Errorf("get video %s: %w", id, err)
	}
	v.Tags = unmarshalJSON(tags)
	v.Resolutions = unmarshalJSON(resolutions)
	return v, true, nil
}

// UpdateVideo changes a video's name and tags. It reports whether the
// video existed.
func (s *Store) UpdateVideo(ctx context.Context, id, name string, tags []string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE videos SET name = ?, tags = ? WHERE id = ?", name, marshalJSON(tags), id)
	if err != nil {
		return false, fmt.Errorf("update video %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// VideoIDsWithPrefix resolves each given ID or ID prefix to the full
// stored IDs, deduplicated.
func (s *Store) VideoIDsWithPrefix(ctx context.Context, ids []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		rows, err := s.db.QueryContext(ctx,
			"SELECT id FROM videos WHERE id = ? OR id LIKE ? || '%'", id, id)
		if err != nil {
			return nil, fmt.Errorf("resolve video id %s: %w", id, err)
		}
		for rows.Next() {
			var full string
			if err := rows.Scan(&full); err != nil {
				rows.Close()
				return nil, err
			}
			if !seen[full] {
				seen[full] = true
				out = append(out, full)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// DeleteVideos removes videos and their subtitle/attachment/chapter
// rows, returning how many videos were deleted.
func (s *Store) DeleteVideos(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	deleted := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
		if err != nil {
			return 0, fmt.Errorf("delete video %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += int(n)
		for _, table := range []string{"subtitles", "attachments", "chapters"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE video_id = ?", id); err != nil {
				return 0, fmt.Errorf("delete %s for %s: %w", table, id, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return deleted, nil
}

// SaveSubtitle upserts one subtitle track's metadata.
func (s *Store) SaveSubtitle(ctx context.Context, sub Subtitle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subtitles (video_id, track_index, language, title, codec, storage_key, is_default, is_forced)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (video_id, track_index) DO UPDATE SET
		   language = excluded.language, title = excluded.title, codec = excluded.codec,
		   storage_key = excluded.storage_key, is_default = excluded.is_default, is_forced = excluded.is_forced`,
		sub.VideoID, sub.TrackIndex, nullable(sub.Language), nullable(sub.Title), sub.Codec, sub.StorageKey, sub.Default, sub.Forced)
	if err != nil {
		return fmt.Errorf("save subtitle %s/%d: %w", sub.VideoID, sub.TrackIndex, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListSubtitles returns all subtitle tracks of a video in track order.
func (s *Store) ListSubtitles(ctx context.Context, videoID string) ([]Subtitle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, track_index, COALESCE(language, ''), COALESCE(title, ''), codec, storage_key, is_default, is_forced
		 FROM subtitles WHERE video_id = ? ORDER BY track_index`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list subtitles %s: %w", videoID, err)
	}
	defer rows.Close()
	var out []Subtitle
	for rows.Next() {
		var sub Subtitle
		if err := rows.Scan(&sub.VideoID, &sub.TrackIndex, &sub.Language, &sub.Title, &sub.Codec, &sub.StorageKey, &sub.Default, &sub.Forced); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GetSubtitleByTrack returns one subtitle track.
func (s *Store) GetSubtitleByTrack(ctx context.Context, videoID string, trackIndex int) (Subtitle, bool, error) {
	var sub Subtitle
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, track_index, COALESCE(language, ''), COALESCE(title, ''), codec, storage_key, is_default, is_forced
		 FROM subtitles WHERE video_id = ? AND track_index = ?`, videoID, trackIndex).
		Scan(&sub.VideoID, &sub.TrackIndex, &sub.Language, &sub.Title, &sub.Codec, &sub.StorageKey, &sub.Default, &sub.Forced)
	if errors.Is(err, sql.ErrNoRows) {
		return Subtitle{}, false, nil
	}
	if err != nil {
		return Subtitle{}, false, fmt.Errorf("get subtitle %s/%d: %w", videoID, trackIndex, err)
	}
	return sub, true, nil
}

// SaveAttachment upserts one attachment's metadata.
func (s *Store) SaveAttachment(ctx context.Context, att Attachment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (video_id, filename, mimetype, storage_key)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (video_id, filename) DO UPDATE SET
		   mimetype = excluded.mimetype, storage_key = excluded.storage_key`,
		att.VideoID, att.Filename, att.MimeType, att.StorageKey)
	if err != nil {
		return fmt.Errorf("save attachment %s/%s: %w", att.VideoID, att.Filename, err)
	}
	return nil
}

// ListAttachments returns all attachments of a video.
func (s *Store) ListAttachments(ctx context.Context, videoID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT video_id, filename, mimetype, storage_key FROM attachments WHERE video_id = ? ORDER BY filename", videoID)
	if err != nil {
		return nil, fmt.Errorf("list attachments %s: %w", videoID, err)
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		var att Attachment
		if err := rows.Scan(&att.VideoID, &att.Filename, &att.MimeType, &att.StorageKey); err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// GetAttachmentByFilename returns one attachment.
func (s *Store) GetAttachmentByFilename(ctx context.Context, videoID, filename string) (Attachment, bool, error) {
	var att Attachment
	err := s.db.QueryRowContext(ctx,
		"SELECT video_id, filename, mimetype, storage_key FROM attachments WHERE video_id = ? AND filename = ?",
		videoID, filename).
		Scan(&att.VideoID, &att.Filename, &att.MimeType, &att.StorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Attachment{}, false, nil
	}
	if err != nil {
		return Attachment{}, false, fmt.Errorf("get attachment %s/%s: %w", videoID, filename, err)
	}
	return att, true, nil
}

// SaveChapter upserts one chapter marker.
func (s *Store) SaveChapter(ctx context.Context, ch Chapter) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chapters (video_id, chapter_index, start_time, end_time, title)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (video_id, chapter_index) DO UPDATE SET
		   start_time = excluded.start_time, end_time = excluded.end_time, title = excluded.title`,
		ch.VideoID, ch.ChapterIndex, ch.StartTime, ch.EndTime, ch.Title)
	if err != nil {
		return fmt.Errorf("save chapter %s/%d: %w", ch.VideoID, ch.ChapterIndex, err)
	}
	return nil
}

// ListChapters returns all chapters of a video in order.
func (s *Store) ListChapters(ctx context.Context, videoID string) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT video_id, chapter_index, start_time, end_time, title FROM chapters WHERE video_id = ? ORDER BY chapter_index", videoID)
	if err != nil {
		return nil, fmt.Errorf("list chapters %s: %w", videoID, err)
	}
	defer rows.Close()
	var out []Chapter
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.VideoID, &ch.ChapterIndex, &ch.StartTime, &ch.EndTime, &ch.Title); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// RecentVideos returns up to limit videos, newest first. The analytics
// overview uses it.
func (s *Store) RecentVideos(ctx context.Context, limit int) ([]Video, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, tags, available_resolutions, duration, thumbnail_key, entrypoint, created_at
		 FROM videos ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent videos: %w", err)
	}
	defer rows.Close()
	return scanVideos(rows)
}
