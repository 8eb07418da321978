package webhook

// Payload is the root of a WhatsApp Cloud API webhook POST body.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message in the messages[] array. Type discriminates
// which of the optional fields below is populated.
type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Context     *Context     `json:"context,omitempty"`
	Text        *TextBody    `json:"text,omitempty"`
	Image       *MediaBody   `json:"image,omitempty"`
	Audio       *MediaBody   `json:"audio,omitempty"`
	Video       *MediaBody   `json:"video,omitempty"`
	Document    *MediaBody   `json:"document,omitempty"`
	Sticker     *MediaBody   `json:"sticker,omitempty"`
	Location    *LocationBody `json:"location,omitempty"`
	Contacts    []ContactCard `json:"contacts,omitempty"`
	Reaction    *ReactionBody `json:"reaction,omitempty"`
	Interactive *InteractiveBody `json:"interactive,omitempty"`
	Button      *ButtonBody  `json:"button,omitempty"`
}

type Context struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
}

type LocationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type ContactCard struct {
	Name   ContactName    `json:"name"`
	Phones []ContactPhone `json:"phones,omitempty"`
	Emails []ContactEmail `json:"emails,omitempty"`
}

type ContactName struct {
	FormattedName string `json:"formatted_name"`
}

type ContactPhone struct {
	Phone string `json:"phone"`
}

type ContactEmail struct {
	Email string `json:"email"`
}

type ReactionBody struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type InteractiveBody struct {
	Type        string               `json:"type"`
	ButtonReply *InteractiveIDTitle  `json:"button_reply,omitempty"`
	ListReply   *InteractiveIDTitle  `json:"list_reply,omitempty"`
}

type InteractiveIDTitle struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ButtonBody struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Status is one delivery/read receipt in the statuses[] array. Logged and
// counted, never published as an envelope.
type Status struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
