package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/willemschots/cardhub/internal/account"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/errorz"
)

var errUnauthorized = errors.New("unauthorized")

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// conflicts are reported with their own message and status 409.
var conflicts = []error{
	card.ErrDuplicateShortName,
	card.ErrQuotaExceeded,
	card.ErrWindowClosed,
	card.ErrApprovalRequired,
	card.ErrMarkerInUse,
	card.ErrAlreadyActive,
	account.ErrDuplicateUser,
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	// Invalid input is checked first, it can wrap errorz.ErrNotFound.
	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		_ = writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "invalid input",
			Fields: invalidInput.Fields(),
		})
		return
	}

	for _, target := range conflicts {
		if errors.Is(err, target) {
			_ = writeJSON(w, http.StatusConflict, errorResponse{Error: target.Error()})
			return
		}
	}

	switch {
	case errors.Is(err, errUnauthorized), errors.Is(err, account.ErrInvalidCredentials):
		_ = writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, card.ErrForbidden):
		_ = writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, errorz.ErrNotFound):
		_ = writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, card.ErrTokenExpired):
		_ = writeJSON(w, http.StatusGone, errorResponse{Error: card.ErrTokenExpired.Error()})
	default:
		s.deps.Logger.Error("internal server error",
			"url", r.URL.String(),
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
