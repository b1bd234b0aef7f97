package api

import (
	"sync"

	"food-order-service/internal/gateway"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators adds the custom binding tags used by request structs
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("luhn", func(fl validator.FieldLevel) bool {
			return gateway.ValidLuhn(gateway.DigitsOnly(fl.Field().String()))
		})
	})
}
