package domain

import (
	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the memo rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("firstline", func(fl validator.FieldLevel) bool {
		return !FirstLineEmpty(fl.Field().String())
	})
	return v
}

// ValidateContent applies the first-line rule to a submitted memo.
func ValidateContent(v *validator.Validate, content string) error {
	if err := v.Struct(MemoRequest{Content: content}); err != nil {
		return &ValidationError{Caution: CautionEmptyFirstLine, Content: content}
	}
	return nil
}

// ValidateID accepts only UUID-shaped ids so they are safe as substrate keys.
func ValidateID(v *validator.Validate, id string) error {
	if err := v.Var(id, "required,uuid"); err != nil {
		return ErrInvalidMemoID
	}
	return nil
}
