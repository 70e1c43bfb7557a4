package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var senegalPhone = regexp.MustCompile(`^(\+221|00221)?7[0-9]{8}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("sn_phone", func(fl validator.FieldLevel) bool {
		return IsSenegalMobile(fl.Field().String())
	})
	return v
}

// IsSenegalMobile accepts 7XXXXXXXX with an optional +221 or 00221 prefix. Spaces are ignored.
func IsSenegalMobile(number string) bool {
	return senegalPhone.MatchString(strings.ReplaceAll(number, " ", ""))
}

// ValidateStruct flattens validator errors into one readable message.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "sn_phone":
		return fmt.Sprintf("%s is not a valid Senegalese mobile number", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
