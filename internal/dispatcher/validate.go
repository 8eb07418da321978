package dispatcher

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/zedaapi/eventspine/internal/envelope"
)

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// outboundRequest is the subset of a ResponseReady checked before it is
// turned into a Graph API request body: a well-formed recipient number and
// a non-empty response type.
type outboundRequest struct {
	ToPhone      string `validate:"required,e164"`
	ResponseType string `validate:"required"`
}

// Validator wraps go-playground validator with the custom e164 rule the
// outbound phone number field needs.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the e164 rule registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("e164", validateE164Phone)
	return &Validator{validate: v}
}

// ValidateResponse checks a ResponseReady's recipient and response type are
// well-formed before BuildRequestBody spends effort assembling a request
// the platform would reject outright.
func (v *Validator) ValidateResponse(resp envelope.ResponseReady) error {
	req := outboundRequest{ToPhone: resp.ToPhone, ResponseType: string(resp.ResponseType)}
	if err := v.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid outbound response: %w", err)
	}
	return nil
}

func validateE164Phone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}
