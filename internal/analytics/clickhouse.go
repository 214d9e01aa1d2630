// SPDX-License-Identifier: MIT

// Package analytics records playback views in ClickHouse. The whole
// package is optional: a nil *Client disables analytics and every
// method degrades to a no-op.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/altqx/akane/internal/log"
)

// Options configures the ClickHouse connection.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// HistoryItem is one day of aggregated views.
type HistoryItem struct {
	Date  string `json:"date"`
	Views uint64 `json:"views"`
}

// Client records and aggregates view events.
type Client struct {
	conn driver.Conn
}

const viewsDDL = `
CREATE TABLE IF NOT EXISTS video_views (
	video_id String,
	ip String,
	user_agent String,
	ts DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY (video_id, ts)
`

// Connect opens the ClickHouse connection and ensures the views table
// exists.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if err := conn.Exec(ctx, viewsDDL); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	logger := log.WithComponent("analytics")
	logger.Info().Str("addr", opts.Addr).Msg("clickhouse connected")
	return &Client{conn: conn}, nil
}

// Close releases the connection. Safe on a nil client.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Enabled reports whether analytics are active.
func (c *Client) Enabled() bool {
	return c != nil && c.conn != nil
}

// InsertView records one view event. Views are best effort; callers
// log the error and keep serving.
func (c *Client) InsertView(ctx context.Context, videoID, ip, userAgent string) error {
	if !c.Enabled() {
		return nil
	}
	err := c.conn.Exec(ctx,
		"INSERT INTO video_views (video_id, ip, user_agent) VALUES (?, ?, ?)",
		videoID, ip, userAgent)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

// ViewCounts returns the total views per video for the given IDs.
// Videos without views are absent from the map.
func (c *Client) ViewCounts(ctx context.Context, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	if !c.Enabled() || len(ids) == 0 {
		return counts, nil
	}
	rows, err := c.conn.Query(ctx,
		"SELECT video_id, count() FROM video_views WHERE video_id IN (?) GROUP BY video_id", ids)
	if err != nil {
		return nil, fmt.Errorf("view counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n uint64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan view count: %w", err)
		}
		counts[id] = int64(n)
	}
	return counts, rows.Err()
}

// History returns daily view totals for the last 30 days, oldest
// first.
func (c *Client) History(ctx context.Context) ([]HistoryItem, error) {
	if !c.Enabled() {
		return []HistoryItem{}, nil
	}
	rows, err := c.conn.Query(ctx, `
		SELECT toString(toDate(ts)) AS day, count() AS views
		FROM video_views
		WHERE ts >= now() - INTERVAL 30 DAY
		GROUP BY day
		ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("view history: %w", err)
	}
	defer rows.Close()
	items := []HistoryItem{}
	for rows.Next() {
		var it HistoryItem
		if err := rows.Scan(&it.Date, &it.Views); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
