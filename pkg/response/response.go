// Package response defines the JSON envelope shared by all API handlers.
package response

import "github.com/go-playground/validator/v10"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

var EmptyRequestBodyResponse = Response{
	Status: StatusError,
	Error:  "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status: StatusError,
	Error:  "Invalid request body.",
}

var ResourceNotFoundResponse = Response{
	Status: StatusError,
	Error:  "The requested resource was not found.",
}

var ServerErrorResponse = Response{
	Status: StatusError,
	Error:  "An internal server error occurred. Please try again later.",
}

var StorageUnavailableResponse = Response{
	Status: StatusError,
	Error:  "The service is temporarily unavailable. Please try again later.",
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

func ErrorResponse(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

func issueForTag(tag string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "url":
		return "Invalid url."
	case "min":
		return "Value is too small."
	default:
		return "Invalid value."
	}
}

func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field: e.Field(),
				Value: e.Value(),
				Issue: issueForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status: StatusError,
		Error:  "Validation failed.",
	}

	for _, e := range getValidationErrors(err) {
		resp.Details = append(resp.Details, e)
	}

	return resp
}
