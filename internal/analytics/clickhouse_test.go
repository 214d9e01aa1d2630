// SPDX-License-Identifier: MIT

package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// A nil client stands in for disabled analytics everywhere, so every
// method must be safe on it.
func TestNilClientIsDisabled(t *testing.T) {
	var c *Client
	require.False(t, c.Enabled(), "nil client must report disabled")

	ctx := context.Background()
	require.NoError(t, c.InsertView(ctx, "vid1", "1.2.3.4", "ua"))

	counts, err := c.ViewCounts(ctx, []string{"vid1"})
	require.NoError(t, err)
	require.Empty(t, counts)

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.NotNil(t, history, "history must be an empty slice, not nil")
	require.Empty(t, history)

	require.NoError(t, c.Close())
}
