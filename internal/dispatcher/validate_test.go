package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zedaapi/eventspine/internal/envelope"
)

func TestValidateResponseAcceptsE164Phone(t *testing.T) {
	v := NewValidator()
	err := v.ValidateResponse(envelope.ResponseReady{
		ToPhone:      "15551234567",
		ResponseType: envelope.ResponseText,
	})
	assert.NoError(t, err)
}

func TestValidateResponseRejectsMalformedPhone(t *testing.T) {
	cases := []string{"", "not-a-phone", "0123456789", "+"}
	v := NewValidator()
	for _, phone := range cases {
		err := v.ValidateResponse(envelope.ResponseReady{
			ToPhone:      phone,
			ResponseType: envelope.ResponseText,
		})
		assert.Error(t, err, phone)
	}
}

func TestValidateResponseRejectsEmptyResponseType(t *testing.T) {
	v := NewValidator()
	err := v.ValidateResponse(envelope.ResponseReady{ToPhone: "15551234567"})
	assert.Error(t, err)
}
