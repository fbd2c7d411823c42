package project

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/alumnet/alumnet/core"
)

var (
	projectTypeTag  = "projecttype"
	projectTypeText = "invalid project type"

	departmentTag  = "department"
	departmentText = "invalid department"
)

// InitValidators registers the project validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(projectTypeTag, oneOfValidation(ProjectTypes))
	core.RegisterCustomTranslation(validate, translator, projectTypeTag, projectTypeText)

	_ = validate.RegisterValidation(departmentTag, oneOfValidation(Departments))
	core.RegisterCustomTranslation(validate, translator, departmentTag, departmentText)
}

// oneOfValidation accepts values containing spaces, unlike the builtin oneof.
func oneOfValidation(choices []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return core.ContainsString(choices, fl.Field().String())
	}
}
