package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/models"
)

func TestHTMLLines(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt;<br>c<br>d", htmlLines("a <b>\r\nc\nd"))
}

func TestFeedbackMessage(t *testing.T) {
	fb := models.Feedback{
		ID:        "fb-1",
		UserID:    "user-1",
		Name:      "Asha <script>",
		Email:     "asha@example.org",
		Message:   "map is slow\nplease fix",
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	msg := feedbackMessage("feedback@straywatch.org", "info@straywatch.org", fb)

	assert.Equal(t, "feedback@straywatch.org", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	require.Len(t, msg.Personalizations[0].To, 1)
	assert.Equal(t, "info@straywatch.org", msg.Personalizations[0].To[0].Address)
	assert.Equal(t, "asha@example.org", msg.ReplyTo.Address)

	require.Len(t, msg.Content, 2)
	assert.Contains(t, msg.Content[0].Value, "map is slow\nplease fix")
	assert.Contains(t, msg.Content[1].Value, "map is slow<br>please fix")
	assert.Contains(t, msg.Content[1].Value, "Asha &lt;script&gt;")
	assert.NotContains(t, msg.Content[1].Value, "<script>")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.FeedbackReceived(context.Background(), models.Feedback{}))
}

// gatedNotifier hands over its context and blocks until released.
type gatedNotifier struct {
	got     chan context.Context
	release chan struct{}
}

func (g *gatedNotifier) FeedbackReceived(ctx context.Context, _ models.Feedback) error {
	g.got <- ctx
	<-g.release
	return nil
}

func TestAsync_ReturnsBeforeDelivery(t *testing.T) {
	inner := &gatedNotifier{got: make(chan context.Context, 1), release: make(chan struct{})}
	a := NewAsync(inner, time.Minute)
	reqCtx, cancel := context.WithCancel(context.Background())

	start := time.Now()
	require.NoError(t, a.FeedbackReceived(reqCtx, models.Feedback{ID: "fb-1"}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	cancel()

	var sendCtx context.Context
	select {
	case sendCtx = <-inner.got:
	case <-time.After(time.Second):
		t.Fatal("notification never delivered")
	}
	_, hasDeadline := sendCtx.Deadline()
	assert.True(t, hasDeadline)
	assert.NoError(t, sendCtx.Err(), "ending the request does not abort delivery")

	close(inner.release)
	a.Wait()
}

type errNotifier struct{ err chan error }

func (e errNotifier) FeedbackReceived(ctx context.Context, _ models.Feedback) error {
	<-ctx.Done()
	e.err <- ctx.Err()
	return ctx.Err()
}

func TestAsync_TimeoutBoundsDelivery(t *testing.T) {
	inner := errNotifier{err: make(chan error, 1)}
	a := NewAsync(inner, 20*time.Millisecond)

	require.NoError(t, a.FeedbackReceived(context.Background(), models.Feedback{ID: "fb-2"}))
	a.Wait()

	assert.True(t, errors.Is(<-inner.err, context.DeadlineExceeded))
}
