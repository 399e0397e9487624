package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighWaterMark_ZeroTimeWhenNeverFetched(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	mark, err := HighWaterMark(ctx, db, "statement")
	require.NoError(t, err)
	assert.True(t, mark.IsZero())
}

func TestAdvanceHighWaterMark_UpsertsPerLevel(t *testing.T) {
	db, _ := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, AdvanceHighWaterMark(ctx, db, "statement", first))

	mark, err := HighWaterMark(ctx, db, "statement")
	require.NoError(t, err)
	assert.True(t, mark.Equal(first))

	second := first.Add(24 * time.Hour)
	require.NoError(t, AdvanceHighWaterMark(ctx, db, "statement", second))

	mark, err = HighWaterMark(ctx, db, "statement")
	require.NoError(t, err)
	assert.True(t, mark.Equal(second))

	untouched, err := HighWaterMark(ctx, db, "report")
	require.NoError(t, err)
	assert.True(t, untouched.IsZero())
}
