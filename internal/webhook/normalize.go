package webhook

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zedaapi/eventspine/internal/envelope"
)

// ErrUnsupportedMessageType is returned by Normalize for a message type the
// domain has no MessageContent variant for (e.g. "unknown", "ephemeral").
var ErrUnsupportedMessageType = fmt.Errorf("unsupported message type")

// NormalizedEvent is one of a MessageReceived or InteractionReceived
// envelope payload extracted from a single inbound message, plus the
// partition key to publish it under.
type NormalizedEvent struct {
	Topic string
	Key   string
	Event any // envelope.MessageReceived or envelope.InteractionReceived
}

// Normalize converts one webhook Message into the domain event it
// represents. Reaction messages map onto a Text MessageReceived carrying
// the emoji, per the reaction→Text mapping decision recorded for this
// ingress. Interactive button/list replies map onto InteractionReceived.
func Normalize(msg Message, receivedAt time.Time) (NormalizedEvent, error) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return NormalizedEvent{}, fmt.Errorf("%w: text message missing body", ErrUnsupportedMessageType)
		}
		return messageEvent(msg, receivedAt, envelope.MessageText, envelope.MessageContent{
			Text: &envelope.TextContent{Body: msg.Text.Body},
		}), nil

	case "reaction":
		if msg.Reaction == nil {
			return NormalizedEvent{}, fmt.Errorf("%w: reaction missing body", ErrUnsupportedMessageType)
		}
		return messageEvent(msg, receivedAt, envelope.MessageText, envelope.MessageContent{
			Text: &envelope.TextContent{Body: msg.Reaction.Emoji},
		}), nil

	case "image", "sticker":
		return mediaMessageEvent(msg, receivedAt, envelope.MessageImage, mediaBodyFor(msg))
	case "audio":
		return mediaMessageEvent(msg, receivedAt, envelope.MessageAudio, msg.Audio)
	case "video":
		return mediaMessageEvent(msg, receivedAt, envelope.MessageVideo, msg.Video)
	case "document":
		return mediaMessageEvent(msg, receivedAt, envelope.MessageDocument, msg.Document)

	case "location":
		if msg.Location == nil {
			return NormalizedEvent{}, fmt.Errorf("%w: location missing body", ErrUnsupportedMessageType)
		}
		return messageEvent(msg, receivedAt, envelope.MessageLocation, envelope.MessageContent{
			Location: &envelope.LocationContent{
				Latitude:  msg.Location.Latitude,
				Longitude: msg.Location.Longitude,
				Name:      msg.Location.Name,
				Address:   msg.Location.Address,
			},
		}), nil

	case "contacts":
		if len(msg.Contacts) == 0 {
			return NormalizedEvent{}, fmt.Errorf("%w: contacts message empty", ErrUnsupportedMessageType)
		}
		card := msg.Contacts[0]
		contact := envelope.ContactContent{Name: card.Name.FormattedName}
		if len(card.Phones) > 0 {
			contact.PhoneNumber = card.Phones[0].Phone
		}
		if len(card.Emails) > 0 {
			contact.Email = card.Emails[0].Email
		}
		return messageEvent(msg, receivedAt, envelope.MessageContact, envelope.MessageContent{
			Contact: &contact,
		}), nil

	case "interactive":
		return interactionEvent(msg, receivedAt)

	case "button":
		if msg.Button == nil {
			return NormalizedEvent{}, fmt.Errorf("%w: button missing body", ErrUnsupportedMessageType)
		}
		return NormalizedEvent{
			Topic: "conversation.interactions",
			Key:   msg.From,
			Event: envelope.InteractionReceived{
				OriginalMessageID: contextMessageID(msg),
				FromPhone:         msg.From,
				InteractionType:   envelope.InteractionButtonReply,
				Selection: envelope.InteractionSelection{
					Button: &envelope.InteractiveButtonContent{ID: msg.Button.Payload, Title: msg.Button.Text},
				},
				ReceivedAt: receivedAt,
			},
		}, nil

	default:
		return NormalizedEvent{}, fmt.Errorf("%w: %q", ErrUnsupportedMessageType, msg.Type)
	}
}

func mediaMessageEvent(msg Message, receivedAt time.Time, msgType envelope.MessageType, body *MediaBody) (NormalizedEvent, error) {
	if body == nil {
		return NormalizedEvent{}, fmt.Errorf("%w: %s missing body", ErrUnsupportedMessageType, msgType)
	}
	return messageEvent(msg, receivedAt, msgType, envelope.MessageContent{
		Media: &envelope.MediaContent{MediaID: body.ID, Caption: body.Caption, MimeType: body.MimeType},
	}), nil
}

func mediaBodyFor(msg Message) *MediaBody {
	if msg.Image != nil {
		return msg.Image
	}
	return msg.Sticker
}

func messageEvent(msg Message, receivedAt time.Time, msgType envelope.MessageType, content envelope.MessageContent) NormalizedEvent {
	return NormalizedEvent{
		Topic: "conversation.messages",
		Key:   msg.From,
		Event: envelope.MessageReceived{
			MessageID:   msg.ID,
			FromPhone:   msg.From,
			MessageType: msgType,
			Content:     content,
			ReceivedAt:  receivedAt,
			Metadata:    envelope.MessageReceivedMetadata{ContextMessageID: contextMessageID(msg)},
		},
	}
}

func interactionEvent(msg Message, receivedAt time.Time) (NormalizedEvent, error) {
	if msg.Interactive == nil {
		return NormalizedEvent{}, fmt.Errorf("%w: interactive missing body", ErrUnsupportedMessageType)
	}
	selection := envelope.InteractionSelection{}
	var interactionType envelope.InteractionType

	switch {
	case msg.Interactive.ButtonReply != nil:
		interactionType = envelope.InteractionButtonReply
		selection.Button = &envelope.InteractiveButtonContent{
			ID:    msg.Interactive.ButtonReply.ID,
			Title: msg.Interactive.ButtonReply.Title,
		}
	case msg.Interactive.ListReply != nil:
		interactionType = envelope.InteractionListReply
		selection.List = &envelope.InteractiveListContent{
			Sections: []envelope.ListSection{{
				Rows: []envelope.ListRow{{
					ID:          msg.Interactive.ListReply.ID,
					Title:       msg.Interactive.ListReply.Title,
					Description: msg.Interactive.ListReply.Description,
				}},
			}},
		}
	default:
		return NormalizedEvent{}, fmt.Errorf("%w: interactive reply has neither button nor list", ErrUnsupportedMessageType)
	}

	return NormalizedEvent{
		Topic: "conversation.interactions",
		Key:   msg.From,
		Event: envelope.InteractionReceived{
			OriginalMessageID: contextMessageID(msg),
			FromPhone:         msg.From,
			InteractionType:   interactionType,
			Selection:         selection,
			ReceivedAt:        receivedAt,
		},
	}, nil
}

func contextMessageID(msg Message) string {
	if msg.Context != nil {
		return msg.Context.ID
	}
	return ""
}

// ParseTimestamp converts the webhook's unix-epoch-seconds string timestamp
// to a time.Time, falling back to now on malformed input.
func ParseTimestamp(raw string) time.Time {
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(seconds, 0).UTC()
}
