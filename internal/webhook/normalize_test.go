package webhook

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedaapi/eventspine/internal/envelope"
)

func TestNormalizeTextMessage(t *testing.T) {
	msg := Message{
		From: "15551234567",
		ID:   "wamid.1",
		Type: "text",
		Text: &TextBody{Body: "hello"},
	}

	result, err := Normalize(msg, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "conversation.messages", result.Topic)
	assert.Equal(t, "15551234567", result.Key)

	received, ok := result.Event.(envelope.MessageReceived)
	require.True(t, ok)
	assert.Equal(t, envelope.MessageText, received.MessageType)
	require.NotNil(t, received.Content.Text)
	assert.Equal(t, "hello", received.Content.Text.Body)
}

func TestNormalizeReactionMapsToText(t *testing.T) {
	msg := Message{
		From:     "15551234567",
		ID:       "wamid.2",
		Type:     "reaction",
		Reaction: &ReactionBody{MessageID: "wamid.1", Emoji: "👍"},
	}

	result, err := Normalize(msg, time.Now())
	require.NoError(t, err)

	received := result.Event.(envelope.MessageReceived)
	assert.Equal(t, envelope.MessageText, received.MessageType)
	assert.Equal(t, "👍", received.Content.Text.Body)
}

func TestNormalizeInteractiveButtonReply(t *testing.T) {
	msg := Message{
		From: "15551234567",
		ID:   "wamid.3",
		Type: "interactive",
		Interactive: &InteractiveBody{
			Type:        "button_reply",
			ButtonReply: &InteractiveIDTitle{ID: "opt_1", Title: "Yes"},
		},
	}

	result, err := Normalize(msg, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "conversation.interactions", result.Topic)

	interaction := result.Event.(envelope.InteractionReceived)
	assert.Equal(t, envelope.InteractionButtonReply, interaction.InteractionType)
	require.NotNil(t, interaction.Selection.Button)
	assert.Equal(t, "opt_1", interaction.Selection.Button.ID)
}

func TestNormalizeLocationMessage(t *testing.T) {
	msg := Message{
		From:     "15551234567",
		ID:       "wamid.4",
		Type:     "location",
		Location: &LocationBody{Latitude: 1.23, Longitude: 4.56, Name: "HQ"},
	}

	result, err := Normalize(msg, time.Now())
	require.NoError(t, err)

	received := result.Event.(envelope.MessageReceived)
	assert.Equal(t, envelope.MessageLocation, received.MessageType)
	assert.Equal(t, 1.23, received.Content.Location.Latitude)
}

func TestNormalizeUnknownTypeReturnsUnsupported(t *testing.T) {
	msg := Message{From: "15551234567", ID: "wamid.5", Type: "unknown"}

	_, err := Normalize(msg, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedMessageType))
}

func TestNormalizeTextMessageMissingBody(t *testing.T) {
	msg := Message{From: "15551234567", ID: "wamid.6", Type: "text"}

	_, err := Normalize(msg, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedMessageType))
}

func TestParseTimestampFallsBackOnMalformedInput(t *testing.T) {
	ts := ParseTimestamp("not-a-number")
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestParseTimestampParsesUnixSeconds(t *testing.T) {
	ts := ParseTimestamp("1700000000")
	assert.Equal(t, int64(1700000000), ts.Unix())
}
