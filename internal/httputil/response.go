package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the uniform non-2xx payload (spec.md §4.11 "All non-2xx
// bodies include { code, message }").
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard { code, message } error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Code: code, Message: message})
}

// DecodeJSON decodes r's body into v, writing a schema error response and
// returning false on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return DecodeJSONRequiring(w, r, v)
}

// DecodeJSONRequiring probes body for the presence of each required field
// before attempting a strict json.Unmarshal (spec.md §4.7 step 1 "schema
// gate"): a cheap gjson presence check rejects obviously incomplete
// payloads without constructing v, then falls through to the normal
// strict decode for well-typed validation of what's present.
func DecodeJSONRequiring(w http.ResponseWriter, r *http.Request, v any, requiredFields ...string) bool {
	body, err := ReadAllStrict(r.Body, 1<<20)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "schema", "request body too large or unreadable")
		return false
	}
	if missing := MissingFields(body, requiredFields...); len(missing) > 0 {
		WriteError(w, http.StatusBadRequest, "schema", "missing required field: "+missing[0])
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		WriteError(w, http.StatusBadRequest, "schema", "malformed JSON body")
		return false
	}
	return true
}
