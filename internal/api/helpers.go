package api

import (
	"encoding/json/v2"
	"net/http"

	domainerrors "github.com/pageturnapp/pageturn-server/internal/errors"
)

// decodeJSON decodes a request body into dst, returning a domain
// validation error on malformed input.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.UnmarshalRead(r.Body, dst); err != nil {
		return domainerrors.Validation("Invalid JSON body").WithCause(err)
	}
	return nil
}
