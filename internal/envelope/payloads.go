package envelope

import "time"

// MessageType discriminates MessageReceived.Content.
type MessageType string

const (
	MessageText     MessageType = "Text"
	MessageImage    MessageType = "Image"
	MessageAudio    MessageType = "Audio"
	MessageVideo    MessageType = "Video"
	MessageDocument MessageType = "Document"
	MessageLocation MessageType = "Location"
	MessageContact  MessageType = "Contact"
	MessageSticker  MessageType = "Sticker"
)

// InteractionType discriminates InteractionReceived.Selection.
type InteractionType string

const (
	InteractionButtonReply InteractionType = "ButtonReply"
	InteractionListReply   InteractionType = "ListReply"
)

// ResponseType discriminates ResponseReady.Content.
type ResponseType string

const (
	ResponseText        ResponseType = "Text"
	ResponseInteractive ResponseType = "Interactive"
	ResponseMedia       ResponseType = "Media"
	ResponseTemplate    ResponseType = "Template"
)

// Priority is advisory hinting for the outbound dispatcher; per-phone FIFO
// ordering always takes precedence over it.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityUrgent Priority = "Urgent"
)

// FailureType classifies a terminal MessageFailed event.
type FailureType string

const (
	FailureSerialization   FailureType = "SerializationError"
	FailureProcessTimeout  FailureType = "ProcessingTimeout"
	FailureExternalService FailureType = "ExternalServiceError"
	FailureValidation      FailureType = "ValidationError"
	FailureUnknown         FailureType = "UnknownError"
)

// TextContent is the Text variant shared by message and response content.
type TextContent struct {
	Body string `json:"body"`
}

// MediaContent is the Image/Audio/Video/Document/Sticker/Media variant.
type MediaContent struct {
	MediaID  string `json:"media_id"`
	Caption  string `json:"caption,omitempty"`
	MimeType string `json:"mime_type"`
}

// LocationContent is the Location variant.
type LocationContent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ContactContent is the Contact variant.
type ContactContent struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
}

// ListRow is one selectable row of an interactive list response.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows under a title in an interactive list response.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// InteractiveButtonContent is an interactive button response body.
type InteractiveButtonContent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// InteractiveListContent is an interactive list response body.
type InteractiveListContent struct {
	BodyText   string        `json:"body_text"`
	ButtonText string        `json:"button_text"`
	Sections   []ListSection `json:"sections"`
}

// InteractiveKind discriminates the outbound Interactive response variant.
type InteractiveKind string

const (
	InteractiveKindButton          InteractiveKind = "button"
	InteractiveKindList            InteractiveKind = "list"
	InteractiveKindCTAURL          InteractiveKind = "cta_url"
	InteractiveKindLocationRequest InteractiveKind = "location_request_message"
)

// QuickReplyButton is one reply button of an Interactive button response.
type QuickReplyButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CTAURLAction is the action payload of an Interactive cta_url response:
// a single button linking out to an external URL.
type CTAURLAction struct {
	DisplayText string `json:"display_text"`
	URL         string `json:"url"`
}

// InteractiveContent is the Interactive response variant: a tagged union
// over Kind, carrying the shared body/header/footer plus exactly the
// action fields that Kind calls for.
type InteractiveContent struct {
	Kind InteractiveKind `json:"kind"`

	BodyText string `json:"body_text"`
	Header   string `json:"header,omitempty"`
	Footer   string `json:"footer,omitempty"`

	// ButtonText and Sections populate Kind == list.
	ButtonText string        `json:"button_text,omitempty"`
	Sections   []ListSection `json:"sections,omitempty"`

	// Buttons populates Kind == button (up to three quick-reply buttons).
	Buttons []QuickReplyButton `json:"buttons,omitempty"`

	// CTA populates Kind == cta_url.
	CTA *CTAURLAction `json:"cta,omitempty"`

	// Kind == location_request_message has no action fields beyond BodyText.
}

// MessageContent is the tagged union over MessageType for an inbound
// message. Exactly one field is populated, matching Content.MessageType.
type MessageContent struct {
	Text     *TextContent     `json:"Text,omitempty"`
	Media    *MediaContent    `json:"Media,omitempty"`
	Location *LocationContent `json:"Location,omitempty"`
	Contact  *ContactContent  `json:"Contact,omitempty"`
}

// MessageReceivedMetadata carries the optional reply-context hop.
type MessageReceivedMetadata struct {
	ContextMessageID string `json:"context_message_id,omitempty"`
}

// MessageReceived is the payload of an EventMessageReceived envelope.
type MessageReceived struct {
	MessageID   string                  `json:"message_id"`
	FromPhone   string                  `json:"from_phone"`
	MessageType MessageType             `json:"message_type"`
	Content     MessageContent          `json:"content"`
	ReceivedAt  time.Time               `json:"received_at"`
	Metadata    MessageReceivedMetadata `json:"metadata"`
}

// InteractionSelection is the tagged union over InteractionType.
type InteractionSelection struct {
	Button *InteractiveButtonContent `json:"ButtonReply,omitempty"`
	List   *InteractiveListContent  `json:"ListReply,omitempty"`
}

// InteractionReceived is the payload of an EventInteractionReceived envelope.
type InteractionReceived struct {
	OriginalMessageID string                `json:"original_message_id"`
	FromPhone         string                `json:"from_phone"`
	InteractionType   InteractionType       `json:"interaction_type"`
	Selection         InteractionSelection  `json:"selection"`
	ReceivedAt        time.Time             `json:"received_at"`
}

// ResponseContent is the tagged union over ResponseType.
type ResponseContent struct {
	Text        *TextContent        `json:"Text,omitempty"`
	Interactive *InteractiveContent `json:"Interactive,omitempty"`
	Media       *MediaContent       `json:"Media,omitempty"`
	Template    *TemplateContent    `json:"Template,omitempty"`
}

// TemplateContent is the Template response variant: a named, versioned
// message template with ordered parameter substitutions.
type TemplateContent struct {
	Name       string   `json:"name"`
	Language   string   `json:"language"`
	Parameters []string `json:"parameters,omitempty"`
}

// ResponseReady is the payload of an EventResponseReady envelope, produced
// by an external processor and consumed by the outbound dispatcher.
type ResponseReady struct {
	OriginalMessageID string          `json:"original_message_id"`
	ToPhone           string          `json:"to_phone"`
	ResponseType      ResponseType    `json:"response_type"`
	Content           ResponseContent `json:"content"`
	GeneratedAt       time.Time       `json:"generated_at"`
	Priority          Priority        `json:"priority"`
}

// MessageFailed is the payload of an EventMessageFailed envelope, emitted
// on terminal (non-retryable or retry-exhausted) processing failures.
type MessageFailed struct {
	MessageID    string      `json:"message_id"`
	Phone        string      `json:"phone"`
	FailureType  FailureType `json:"failure_type"`
	ErrorDetails string      `json:"error_details"`
	AttemptCount int         `json:"attempt_count"`
	FailedAt     time.Time   `json:"failed_at"`
}
