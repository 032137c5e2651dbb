package audit

import (
	"context"
	"errors"
	"testing"

	"chat-relay/internal/mocks"
	"chat-relay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestEmitWrapsPayload(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewEmitter(pub, "chat-relay", "test", nil)
	ctx := context.WithValue(context.Background(), logger.RequestIdKey, "req-1")

	pub.On("Publish", mock.Anything, CallStarted, mock.MatchedBy(func(e Envelope) bool {
		return e.EventType == CallStarted &&
			e.Service == "chat-relay" &&
			e.RequestID == "req-1" &&
			e.ActorID == "u1" &&
			e.Payload["kind"] == "audio"
	})).Return(nil).Once()

	emitter.Emit(ctx, CallStarted, "u1", map[string]any{"kind": "audio"})
	pub.AssertExpectations(t)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewEmitter(pub, "chat-relay", "test", nil)
	pub.On("Publish", mock.Anything, RoomCreated, mock.Anything).Return(errors.New("closed")).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), RoomCreated, "", nil)
	})
	pub.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *Emitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), RoomJoined, "", nil)
	})
}

func TestNewPublisherFallsBackToNoop(t *testing.T) {
	pub := NewPublisher("", "chat.audit", nil)
	assert.IsType(t, noopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), "k", map[string]string{}))
	assert.NoError(t, pub.Close())
}
