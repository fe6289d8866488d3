package notify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/mocks"
	"messaging-service/internal/notify"
)

func TestMessageReceivedSkipsSender(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := notify.NewEmitter(publisher, "notifications.email", "messaging-service")

	publisher.On("Publish", mock.Anything, "notifications.email", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(notify.Envelope)
		return ok && envelope.Recipient == "bob" && envelope.Payload.Sender == "alice"
	})).Return(nil).Once()

	emitter.MessageReceived(context.Background(), []string{"alice", "bob"}, "c1", "alice", "direct")
	publisher.AssertExpectations(t)
}

func TestMessageReceivedSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := notify.NewEmitter(publisher, "notifications.email", "messaging-service")

	publisher.On("Publish", mock.Anything, "notifications.email", mock.Anything).
		Return(assert.AnError).Twice()

	// Errors are logged, never returned.
	emitter.MessageReceived(context.Background(), []string{"bob", "carol"}, "c1", "alice", "group")
	publisher.AssertExpectations(t)
}

func TestMessageReceivedNilEmitter(t *testing.T) {
	var emitter *notify.Emitter
	emitter.MessageReceived(context.Background(), []string{"bob"}, "c1", "alice", "direct")
}
