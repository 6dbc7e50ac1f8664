package step_test

import (
	"errors"
	"testing"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/region"
	"github.com/alkime/voicebank/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCrossCheck(t *testing.T, items ...api.CrossCheckItem) (*step.CrossCheck, *fakeAPI) {
	t.Helper()

	client := &fakeAPI{items: items}
	c := step.NewCrossCheck(client, nil)
	require.NoError(t, c.Mount(t.Context(), "u-2"))
	return c, client
}

func TestCrossCheck_SubmitAndSkip(t *testing.T) {
	t.Parallel()

	c, client := newCrossCheck(t,
		api.CrossCheckItem{ID: "r-1", Duration: 4},
		api.CrossCheckItem{ID: "r-2", Duration: 1.5},
	)

	completions := 0
	c.OnComplete(func() { completions++ })

	item, start, end, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "r-1", item.ID)
	assert.InDelta(t, 0.0, start, 1e-9)
	assert.InDelta(t, 2.0, end, 1e-9)

	require.NoError(t, c.AdjustRegion(func(sel *region.Selector) { sel.Nudge(region.Start, 0.5) }))
	require.NoError(t, c.Submit(t.Context()))

	item, _, end, ok = c.Current()
	require.True(t, ok)
	assert.Equal(t, "r-2", item.ID)
	assert.InDelta(t, 1.5, end, 1e-9, "default span is capped by the clip")

	require.NoError(t, c.Skip(t.Context()))
	assert.True(t, c.Exhausted())
	assert.Equal(t, 1, completions)

	reviewed, total := c.Progress()
	assert.Equal(t, 2, reviewed)
	assert.Equal(t, 2, total)

	require.Len(t, client.reviews, 2)
	first := client.reviews[0]
	assert.Equal(t, "u-2", first.UserID)
	assert.Equal(t, "r-1", first.RecordingID)
	require.NotNil(t, first.KeywordStart)
	assert.InDelta(t, 0.5, *first.KeywordStart, 1e-9)
	assert.False(t, first.Unclear)

	second := client.reviews[1]
	assert.True(t, second.Unclear)
	assert.Nil(t, second.KeywordStart)

	require.ErrorIs(t, c.Submit(t.Context()), step.ErrNotReady)
}

func TestCrossCheck_SpanTooLong(t *testing.T) {
	t.Parallel()

	c, client := newCrossCheck(t, api.CrossCheckItem{ID: "r-1", Duration: 6})
	require.NoError(t, c.AdjustRegion(func(sel *region.Selector) { sel.Set(1, 4) }))

	require.ErrorIs(t, c.Submit(t.Context()), step.ErrRegionTooLong)
	assert.Empty(t, client.reviews)
	assert.False(t, c.Exhausted())
}

func TestCrossCheck_ZeroDurationOnlySkips(t *testing.T) {
	t.Parallel()

	c, client := newCrossCheck(t, api.CrossCheckItem{ID: "r-1", Duration: 0})
	_, start, end, ok := c.Current()
	require.True(t, ok)
	assert.Zero(t, end-start)

	require.ErrorIs(t, c.Submit(t.Context()), step.ErrRegionEmpty)
	assert.Empty(t, client.reviews, "nothing is sent for an empty span")
	assert.False(t, c.Exhausted())

	require.NoError(t, c.Skip(t.Context()))
	require.Len(t, client.reviews, 1)
	assert.True(t, client.reviews[0].Unclear)
	assert.True(t, c.Exhausted())
}

func TestCrossCheck_SubmitFailureKeepsItem(t *testing.T) {
	t.Parallel()

	c, client := newCrossCheck(t, api.CrossCheckItem{ID: "r-1", Duration: 3})
	client.setUploadErr(errors.New("timeout"))

	require.ErrorIs(t, c.Skip(t.Context()), step.ErrUploadFailed)
	item, _, _, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "r-1", item.ID)
}

func TestCrossCheck_EmptyAssignmentIsExhausted(t *testing.T) {
	t.Parallel()

	c, _ := newCrossCheck(t)
	assert.True(t, c.Completed())

	_, _, _, ok := c.Current()
	assert.False(t, ok)
}

func TestCrossCheck_NotMounted(t *testing.T) {
	t.Parallel()

	c := step.NewCrossCheck(&fakeAPI{}, nil)
	assert.False(t, c.Exhausted())
	require.ErrorIs(t, c.Skip(t.Context()), step.ErrNotReady)
}
