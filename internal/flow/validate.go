package flow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PartySetup is what the first guest enters before anyone orders.
type PartySetup struct {
	PartySize   int               `json:"party_size" validate:"min=1,max=8"`
	PaymentType model.PaymentType `json:"payment_type" validate:"omitempty,oneof=SINGLE SEPARATE"`
}

type guestName struct {
	Name string `json:"guest_name" validate:"required,max=40"`
}

// Normalize validates the setup and resolves the payment type.  A party
// of one always pays as SINGLE.
func (p PartySetup) Normalize() (PartySetup, error) {
	if err := check(p); err != nil {
		return p, err
	}
	if p.PartySize == 1 {
		p.PaymentType = model.PaySingle
	}
	if p.PaymentType == "" {
		return p, kioskerr.Invalid("payment_type", "choose one check or separate checks")
	}
	return p, nil
}

// check runs struct validation and reports the first failure as a
// *kioskerr.ValidationError.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return kioskerr.Invalid("input", err.Error())
	}
	fe := verrs[0]
	return kioskerr.Invalid(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}
