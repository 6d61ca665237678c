package httpapi

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ChatParams struct {
	Message   string `json:"message" validate:"required"`
	ModelType string `json:"model_type" validate:"omitempty,oneof=gemini hosted local"`
	ModelName string `json:"model_name"`
}

// DeleteParams names the document by "filename" or by its "source" alias
type DeleteParams struct {
	Filename string `json:"filename" validate:"required_without=Source"`
	Source   string `json:"source" validate:"required_without=Filename"`
}

func (p DeleteParams) Name() string {
	if p.Filename != "" {
		return p.Filename
	}
	return p.Source
}

// DocumentInfo is one entry of the document listing
type DocumentInfo struct {
	Source string `json:"source"`
}

type ConnectionParams struct {
	ModelType string `json:"model_type" validate:"required,oneof=gemini hosted local"`
}

// Validate returns the failing fields of params, or nil
func Validate(params any) map[string]string {
	if err := validate.Struct(params); err != nil {
		var errs validator.ValidationErrors
		if !asValidationErrors(err, &errs) {
			return map[string]string{"_": err.Error()}
		}
		out := make(map[string]string, len(errs))
		for _, e := range errs {
			out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return out
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	errs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = errs
	}
	return ok
}
