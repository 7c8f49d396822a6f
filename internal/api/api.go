package api

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the {"error": msg} envelope every handler uses.
func Error(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// FieldErrors writes a validation field->message body as a 400.
func FieldErrors(w http.ResponseWriter, errs map[string]string) {
	WriteJSON(w, http.StatusBadRequest, errs)
}
