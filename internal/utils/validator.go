package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/light-quiz/quiz-service/internal/models"
)

// Validator wraps the struct validator with the custom rules the quiz
// domain needs.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	registerCustomValidators(validate)
	return &Validator{validate: validate}
}

func (v *Validator) Validate(s interface{}) error {
	return v.validate.Struct(s)
}

func ValidateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.QuestionMultipleChoice,
		models.QuestionFreeText,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

// ValidateOptionLetter accepts a single uppercase letter A-Z.
func ValidateOptionLetter(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != 1 {
		return false
	}
	return value[0] >= 'A' && value[0] <= 'Z'
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", ValidateQuestionType)
	validate.RegisterValidation("option_letter", ValidateOptionLetter)

	// Report errors using json field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
