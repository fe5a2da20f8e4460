package auditlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/publisher/memory"
)

func TestRecordPublishesEvent(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	logger := New(zap.NewNop(), WithPublisher(pub, "audit-events"))

	logger.Record("user-1", "audit", "job-1", "job", map[string]any{"action": "submit"})

	require.Eventually(t, func() bool {
		return len(pub.Events()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	published := pub.Events()[0]
	require.Equal(t, "audit-events", published.Topic)
	event, ok := published.Payload.(Event)
	require.True(t, ok)
	require.Equal(t, "user-1", event.ActorID)
	require.Equal(t, "job-1", event.EntityID)
	require.False(t, event.At.IsZero())
}

func TestRecordWithoutPublisherDoesNotPanic(t *testing.T) {
	t.Parallel()

	logger := New(zap.NewNop())
	logger.Record("user-1", "audit", "job-1", "job", nil)
}
