// Package validation checks tracking requests against the Indian AWB,
// pincode and mobile number formats.
package validation

import (
	"regexp"
	"strings"

	"github.com/BearBump/TrackIN/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const (
	MsgInvalidAWB     = "Invalid AWB (10–14 digits)"
	MsgInvalidPincode = "Invalid pincode"
	MsgInvalidMobile  = "Invalid mobile"

	indiaCountryCode = "91"
)

var (
	awbRe     = regexp.MustCompile(`^\d{10,14}$`)
	pincodeRe = regexp.MustCompile(`^[1-9]\d{5}$`)
	mobileRe  = regexp.MustCompile(`^[6-9]\d{9}$`)
	nonDigit  = regexp.MustCompile(`\D`)
)

var messages = map[string]string{
	"AWB":     MsgInvalidAWB,
	"Pincode": MsgInvalidPincode,
	"Phone":   MsgInvalidMobile,
}

// Error is a client input error. Message is safe to return to the caller.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "awb", awbRe.MatchString)
	mustRegister(v, "pincode", pincodeRe.MatchString)
	mustRegister(v, "mobile", func(s string) bool {
		return mobileRe.MatchString(NormalizePhone(s))
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, ok func(string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return ok(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

// NormalizePhone drops everything except digits and then the India country
// code, so "+91 98765 43210" becomes "9876543210". A plain digit strip would
// leave 12 digits and reject that number, which callers expect to pass.
func NormalizePhone(s string) string {
	d := nonDigit.ReplaceAllString(s, "")
	if len(d) == 12 && strings.HasPrefix(d, indiaCountryCode) {
		return d[len(indiaCountryCode):]
	}
	return d
}

// ValidateTrackingRequest returns the first failing field in declaration order
// (awb, pincode, phone) as *Error. Empty pincode and phone are not validated.
func ValidateTrackingRequest(req models.TrackingRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return errors.Wrap(err, "validate tracking request")
	}

	field := ve[0].StructField()
	msg, ok := messages[field]
	if !ok {
		return errors.Errorf("unexpected validation failure on %s", field)
	}
	return &Error{Field: field, Message: msg}
}
