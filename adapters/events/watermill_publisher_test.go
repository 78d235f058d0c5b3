package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggurbet/onchainsurveys/core"
)

func receive(t *testing.T, messages <-chan *message.Message) Event {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		var ev Event
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, ev.Type, msg.Metadata.Get("type"))
		assert.NotEmpty(t, msg.UUID)
		return ev
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Event{}
	}
}

func TestWatermillPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, "auth.test")
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub, "auth.test")

	require.NoError(t, pub.PublishRegistered(ctx, &core.User{ID: "u1", PublicKey: "01aa"}))
	ev := receive(t, messages)
	assert.Equal(t, TypeUserRegistered, ev.Type)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "01aa", ev.PublicKey)
	assert.False(t, ev.OccurredAt.IsZero())

	require.NoError(t, pub.PublishLogin(ctx, "u1", "01aa"))
	ev = receive(t, messages)
	assert.Equal(t, TypeUserLoggedIn, ev.Type)

	require.NoError(t, pub.PublishLogout(ctx, "u1", "jti-1"))
	ev = receive(t, messages)
	assert.Equal(t, TypeUserLoggedOut, ev.Type)
	assert.Equal(t, "jti-1", ev.TokenID)
}

func TestDefaultTopic(t *testing.T) {
	p := NewWatermillPublisher(gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}), "").(*WatermillPublisher)
	assert.Equal(t, DefaultTopic, p.topic)
}
