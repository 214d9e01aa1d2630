// SPDX-License-Identifier: MIT

package media

import (
	"fmt"
	"strings"

	"github.com/google/renameio/v2"
)

// MasterPlaylist renders the HLS master playlist referencing each
// variant's media playlist by its label subdirectory.
func MasterPlaylist(variants []Variant) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, v := range variants {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", v.Bandwidth(), ApproxWidth(v.Height), v.Height)
		fmt.Fprintf(&b, "%s/index.m3u8\n", v.Label)
	}
	return b.String()
}

// WriteMasterPlaylist atomically publishes the master playlist so a
// concurrent upload walk never sees a half-written file.
func WriteMasterPlaylist(path string, variants []Variant) error {
	if err := renameio.WriteFile(path, []byte(MasterPlaylist(variants)), 0o644); err != nil {
		return fmt.Errorf("write master playlist: %w", err)
	}
	return nil
}
