package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"task-manager/internal/workflow"
)

// Validate is the shared validator. Field errors are reported under the json name.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// task_state accepts the exact wire values of workflow.State.
	err := v.RegisterValidation("task_state", func(fl validator.FieldLevel) bool {
		return workflow.State(fl.Field().String()).IsValid()
	})
	if err != nil {
		panic(fmt.Sprintf("register task_state validation: %v", err))
	}
	return v
}
