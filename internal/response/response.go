package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"fiberqc/internal/apierr"
	"fiberqc/internal/models"
)

// ErrInvalidJSON reports a request body that is not valid JSON.
var ErrInvalidJSON = errors.New("Invalid JSON in request body")

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONMeta writes a successful API response with pagination metadata.
func JSONMeta(w http.ResponseWriter, data interface{}, meta models.Meta) {
	WriteJSON(w, http.StatusOK, models.APIResponse{Data: data, Meta: &meta})
}

// JSON writes a successful API response with the given data.
func JSON(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, models.APIResponse{Data: data})
}

// Created writes the 201 body of a creation endpoint.
func Created(w http.ResponseWriter, message string, id int64) {
	WriteJSON(w, http.StatusCreated, models.Created{Message: message, ID: id})
}

// Err writes a JSON error response with the given message and HTTP status code.
func Err(w http.ResponseWriter, msg string, code int) {
	WriteJSON(w, code, map[string]string{"error": msg})
}

// Internal writes the generic 500 body. The error detail is exposed only
// when dev is set.
func Internal(w http.ResponseWriter, err error, dev bool) {
	body := map[string]string{"error": "Internal server error"}
	if dev && err != nil {
		body["message"] = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, body)
}

// Fail writes err: an *apierr.Error below 500 uses its status and message,
// everything else becomes a generic 500.
func Fail(w http.ResponseWriter, err error, dev bool) {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Status > 0 && ae.Status < http.StatusInternalServerError {
		Err(w, ae.Error(), ae.Status)
		return
	}
	Internal(w, err, dev)
}
