package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/willemschots/cardhub/internal/errorz"
)

const maxBodySize = 1 << 20

// decodeJSON decodes the request body into v. Unknown fields are rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return errorz.InvalidInput{errorz.Keyed{Key: typeErr.Field, Err: fmt.Errorf("expected %s", typeErr.Type)}}
	}

	return errorz.InvalidInput{errorz.Keyed{Key: "body", Err: err}}
}

// decodeQuery decodes the query parameters into v using schema tags.
func (s *Server) decodeQuery(r *http.Request, v any) error {
	return decodeError(s.decoder.Decode(v, r.URL.Query()))
}

func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var multiErr schema.MultiError
	if errors.As(err, &multiErr) {
		var invalidInput errorz.InvalidInput
		for key, e := range multiErr {
			invalidInput = append(invalidInput, errorz.Keyed{
				Key: key,
				Err: e,
			})
		}

		return invalidInput
	}

	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
