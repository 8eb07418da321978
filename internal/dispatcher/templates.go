package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/zedaapi/eventspine/internal/envelope"
)

// ErrUnsupportedResponseType is returned by BuildRequestBody for a
// response_type with no matching content populated.
var ErrUnsupportedResponseType = fmt.Errorf("dispatcher: unsupported response type")

// mediaTypeOf maps the envelope's media MIME type prefix onto the Graph
// API's media object key. Defaults to "document" for anything else.
func mediaTypeOf(mimeType string) string {
	switch {
	case len(mimeType) >= 6 && mimeType[:6] == "image/":
		return "image"
	case len(mimeType) >= 6 && mimeType[:6] == "audio/":
		return "audio"
	case len(mimeType) >= 6 && mimeType[:6] == "video/":
		return "video"
	default:
		return "document"
	}
}

// textBody is the request body for a Text response.
type textBody struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textNode `json:"text"`
}

type textNode struct {
	Body string `json:"body"`
}

// mediaNode is the per-media-type object (image/audio/video/document) of
// a Media response; the request body assembles it under a dynamic key
// since the Graph API names the field after the media type.
type mediaNode struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// interactiveBody is the request body for an Interactive response, shared
// across the button/list/cta_url/location_request_message sub-types.
type interactiveBody struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Interactive      interactiveNode `json:"interactive"`
}

type interactiveNode struct {
	Type   string           `json:"type"`
	Header *interactiveText `json:"header,omitempty"`
	Body   interactiveText  `json:"body"`
	Footer *interactiveText `json:"footer,omitempty"`
	Action any              `json:"action"`
}

type interactiveText struct {
	Text string `json:"text"`
}

type interactiveListAction struct {
	Button   string                 `json:"button,omitempty"`
	Sections []envelope.ListSection `json:"sections"`
}

type interactiveButtonAction struct {
	Buttons []interactiveReplyButton `json:"buttons"`
}

type interactiveReplyButton struct {
	Type  string                   `json:"type"`
	Reply interactiveReplyButtonID `json:"reply"`
}

type interactiveReplyButtonID struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type interactiveCTAURLAction struct {
	Name       string                `json:"name"`
	Parameters interactiveCTAURLBody `json:"parameters"`
}

type interactiveCTAURLBody struct {
	DisplayText string `json:"display_text"`
	URL         string `json:"url"`
}

type interactiveLocationRequestAction struct {
	Name string `json:"name"`
}

// templateBody is the request body for a Template response.
type templateBody struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         templateNode `json:"template"`
}

type templateNode struct {
	Name     string             `json:"name"`
	Language templateLanguage   `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BuildRequestBody constructs the Graph API JSON body for one ResponseReady
// payload, selected by response_type per the per-type template.
func BuildRequestBody(resp envelope.ResponseReady) ([]byte, error) {
	switch resp.ResponseType {
	case envelope.ResponseText:
		if resp.Content.Text == nil {
			return nil, fmt.Errorf("%w: Text content missing", ErrUnsupportedResponseType)
		}
		return json.Marshal(textBody{
			MessagingProduct: "whatsapp",
			To:               resp.ToPhone,
			Type:             "text",
			Text:             textNode{Body: resp.Content.Text.Body},
		})

	case envelope.ResponseMedia:
		if resp.Content.Media == nil {
			return nil, fmt.Errorf("%w: Media content missing", ErrUnsupportedResponseType)
		}
		mediaType := mediaTypeOf(resp.Content.Media.MimeType)
		node, err := json.Marshal(mediaNode{ID: resp.Content.Media.MediaID, Caption: resp.Content.Media.Caption})
		if err != nil {
			return nil, fmt.Errorf("marshal media node: %w", err)
		}
		body := map[string]json.RawMessage{
			"messaging_product": mustMarshal("whatsapp"),
			"to":                mustMarshal(resp.ToPhone),
			"type":              mustMarshal(mediaType),
			mediaType:           node,
		}
		return json.Marshal(body)

	case envelope.ResponseInteractive:
		if resp.Content.Interactive == nil {
			return nil, fmt.Errorf("%w: Interactive content missing", ErrUnsupportedResponseType)
		}
		node, err := interactiveNodeFor(*resp.Content.Interactive)
		if err != nil {
			return nil, err
		}
		return json.Marshal(interactiveBody{
			MessagingProduct: "whatsapp",
			To:               resp.ToPhone,
			Type:             "interactive",
			Interactive:      node,
		})

	case envelope.ResponseTemplate:
		if resp.Content.Template == nil {
			return nil, fmt.Errorf("%w: Template content missing", ErrUnsupportedResponseType)
		}
		var components []templateComponent
		if len(resp.Content.Template.Parameters) > 0 {
			params := make([]templateParameter, 0, len(resp.Content.Template.Parameters))
			for _, p := range resp.Content.Template.Parameters {
				params = append(params, templateParameter{Type: "text", Text: p})
			}
			components = []templateComponent{{Type: "body", Parameters: params}}
		}
		return json.Marshal(templateBody{
			MessagingProduct: "whatsapp",
			To:               resp.ToPhone,
			Type:             "template",
			Template: templateNode{
				Name:       resp.Content.Template.Name,
				Language:   templateLanguage{Code: resp.Content.Template.Language},
				Components: components,
			},
		})

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedResponseType, resp.ResponseType)
	}
}

// interactiveNodeFor builds the interactive node for one of the four
// response_type=Interactive sub-types, sharing the common header/body/
// footer and diverging only in the action payload.
func interactiveNodeFor(content envelope.InteractiveContent) (interactiveNode, error) {
	node := interactiveNode{
		Type: string(content.Kind),
		Body: interactiveText{Text: content.BodyText},
	}
	if content.Header != "" {
		node.Header = &interactiveText{Text: content.Header}
	}
	if content.Footer != "" {
		node.Footer = &interactiveText{Text: content.Footer}
	}

	switch content.Kind {
	case envelope.InteractiveKindList:
		node.Action = interactiveListAction{
			Button:   content.ButtonText,
			Sections: content.Sections,
		}

	case envelope.InteractiveKindButton:
		buttons := make([]interactiveReplyButton, 0, len(content.Buttons))
		for _, b := range content.Buttons {
			buttons = append(buttons, interactiveReplyButton{
				Type:  "reply",
				Reply: interactiveReplyButtonID{ID: b.ID, Title: b.Title},
			})
		}
		node.Action = interactiveButtonAction{Buttons: buttons}

	case envelope.InteractiveKindCTAURL:
		if content.CTA == nil {
			return interactiveNode{}, fmt.Errorf("%w: cta_url content missing CTA", ErrUnsupportedResponseType)
		}
		node.Action = interactiveCTAURLAction{
			Name: "cta_url",
			Parameters: interactiveCTAURLBody{
				DisplayText: content.CTA.DisplayText,
				URL:         content.CTA.URL,
			},
		}

	case envelope.InteractiveKindLocationRequest:
		node.Action = interactiveLocationRequestAction{Name: "send_location"}

	default:
		return interactiveNode{}, fmt.Errorf("%w: interactive kind %q", ErrUnsupportedResponseType, content.Kind)
	}

	return node, nil
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
