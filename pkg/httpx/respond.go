package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/tindalabs/storefront-core/pkg/apperr"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
