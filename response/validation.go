package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is a 400 listing every field that failed validation
func ErrValidation(err error) *Error {
	e := ErrBadRequest().WithMessage("Invalid request body")

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return e.AddMessages(err.Error())
	}
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			e.AddMessages(fmt.Sprintf("%s failed on %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			e.AddMessages(fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
	}
	return e
}
