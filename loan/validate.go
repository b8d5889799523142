package loan

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// JSONFieldName names a struct field by its json tag, for validation errors
// that should read like the request body.
func JSONFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// binding タグを gin と共有する
var applicationValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(JSONFieldName)
	return v
})

// Validate checks the binding rules of a. A failure is a
// validator.ValidationErrors.
func (a Application) Validate() error {
	return applicationValidator().Struct(a)
}
