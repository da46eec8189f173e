package services

import (
	"sync"

	"admissions-api/utils"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// inputValidator returns the shared validator with the domain tags registered.
func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
			return utils.ValidateMobile(fl.Field().String())
		})
		_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
			return utils.ValidatePincode(fl.Field().String())
		})
		_ = v.RegisterValidation("utr", func(fl validator.FieldLevel) bool {
			return utils.ValidateUTR(fl.Field().String())
		})
		validate = v
	})
	return validate
}

func validateStruct(s interface{}) error {
	if err := inputValidator().Struct(s); err != nil {
		return fromValidator(err)
	}
	return nil
}
