package api

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"birthdaybot/internal/personality"
	"birthdaybot/internal/types"
)

// slackUserIDPattern matches Slack user and enterprise user IDs.
var slackUserIDPattern = regexp.MustCompile(`^[UW][A-Z0-9]{2,}$`)

// Validator wraps go-playground/validator with the bot's custom tags:
//
//	slack_user   a Slack user ID such as U024BE7LH
//	personality  a known bot voice name, including "random"
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slack_user", func(fl validator.FieldLevel) bool {
		return slackUserIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("personality", func(fl validator.FieldLevel) bool {
		_, err := personality.Parse(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

// ValidateStruct validates s and converts failures into a validation
// AppError whose details list each offending field and rule.
func (v *Validator) ValidateStruct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidPayload, "invalid request", err)
	}

	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return types.NewAppError(types.ErrCodeValidationInvalidPayload, "request failed validation", err).
		WithDetails(map[string]any{"fields": fields})
}
