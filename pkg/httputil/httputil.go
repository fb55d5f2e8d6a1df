package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/cellarcount/cellarcount-backend/pkg/errors"
)

// Response is the envelope of every JSON body the service writes
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody carries the stable error code clients branch on
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta describes a list result. Limit is the cap that was applied, zero
// when the list is unbounded.
type Meta struct {
	Limit int   `json:"limit,omitempty"`
	Total int64 `json:"total"`
}

var internalError = ErrorBody{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// errorBody converts err to its wire form. Anything that is not an AppError
// is reported as an internal error without its message.
func errorBody(err error) (int, *ErrorBody) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode, &ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	body := internalError
	return http.StatusInternalServerError, &body
}

// JSON sends data in the success envelope
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: statusCode >= 200 && statusCode < 300, Data: data})
}

// JSONWithMeta sends a list together with its metadata
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, meta *Meta) {
	write(w, statusCode, Response{Success: statusCode >= 200 && statusCode < 300, Data: data, Meta: meta})
}

// Error sends err with the status of its AppError
func Error(w http.ResponseWriter, err error) {
	statusCode, body := errorBody(err)
	write(w, statusCode, Response{Error: body})
}

// Partial sends data that was committed together with the error that
// stopped the rest of the operation. The status is the error's.
func Partial(w http.ResponseWriter, data interface{}, err error) {
	statusCode, body := errorBody(err)
	write(w, statusCode, Response{Data: data, Error: body})
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// DecodeJSON decodes the request body into v. Unknown fields are rejected.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.BadRequest("invalid JSON body")
	}
	return nil
}

// DecodeAndValidate decodes the body and runs struct validation on it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := DecodeJSON(r, v); err != nil {
		return err
	}
	return Validate(v)
}
