package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/errorz"
	"github.com/willemschots/cardhub/internal/krypto"
)

// withCardID is the ID of the card in the path, and the decoded body.
type withCardID[T any] struct {
	CardID uuid.UUID
	Body   T
}

func currentUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, errUnauthorized
	}
	return userID, nil
}

func cardIDRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, errorz.ErrNotFound
	}
	return id, nil
}

func cardIDBodyRequest[T any](r *http.Request) (withCardID[T], error) {
	id, err := cardIDRequest(r)
	if err != nil {
		return withCardID[T]{}, err
	}

	var body T
	err = decodeJSON(r, &body)
	if err != nil {
		return withCardID[T]{}, err
	}

	return withCardID[T]{CardID: id, Body: body}, nil
}

func (s *Server) createCardHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, in cardBody) (cardResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return cardResponse{}, err
		}

		c, err := s.deps.Cards.Create(ctx, userID, card.CreateRequest{
			ShortName: in.ShortName,
			Content:   in.content(),
		})
		if err != nil {
			return cardResponse{}, err
		}

		return newCardResponse(c, s.NowFunc()), nil
	}).status(http.StatusCreated)
}

func (s *Server) listCardsHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, _ struct{}) ([]cardResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		cards, err := s.deps.Cards.ListByOwner(ctx, userID)
		if err != nil {
			return nil, err
		}

		return newCardsResponse(cards, s.NowFunc()), nil
	}).request(noBody)
}

func (s *Server) getCardHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, cardID uuid.UUID) (cardResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return cardResponse{}, err
		}

		c, err := s.deps.Cards.Get(ctx, cardID)
		if err != nil {
			return cardResponse{}, err
		}

		if c.OwnerID != userID {
			return cardResponse{}, card.ErrForbidden
		}

		return newCardResponse(c, s.NowFunc()), nil
	}).request(cardIDRequest)
}

func (s *Server) editCardHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, in withCardID[cardBody]) (cardResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return cardResponse{}, err
		}

		c, err := s.deps.Cards.Edit(ctx, in.CardID, userID, card.EditRequest{
			ShortName: in.Body.ShortName,
			Content:   in.Body.content(),
		})
		if err != nil {
			return cardResponse{}, err
		}

		return newCardResponse(c, s.NowFunc()), nil
	}).request(cardIDBodyRequest[cardBody])
}

func (s *Server) deleteCardHandler() http.Handler {
	return mapRequest(s, func(ctx context.Context, cardID uuid.UUID) error {
		userID, err := currentUser(ctx)
		if err != nil {
			return err
		}

		return s.deps.Cards.Delete(ctx, cardID, userID)
	}).request(cardIDRequest)
}

type emailBody struct {
	Email email.Address `json:"email"`
}

func (s *Server) editEmailHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, in withCardID[emailBody]) (cardResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return cardResponse{}, err
		}

		c, err := s.deps.Cards.EditEmail(ctx, in.CardID, userID, in.Body.Email)
		if err != nil {
			return cardResponse{}, err
		}

		return newCardResponse(c, s.NowFunc()), nil
	}).request(cardIDBodyRequest[emailBody])
}

type shortNameBody struct {
	ShortName string `json:"shortName"`
}

type availability struct {
	Available bool `json:"available"`
}

func (s *Server) checkShortNameHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, in shortNameBody) (availability, error) {
		ok, err := s.deps.Cards.ShortNameAvailable(ctx, in.ShortName)
		if err != nil {
			return availability{}, err
		}

		return availability{Available: ok}, nil
	})
}

func (s *Server) requestActionHandler(kind card.Kind) http.Handler {
	return mapBoth(s, func(ctx context.Context, cardID uuid.UUID) (messageResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return messageResponse{}, err
		}

		err = s.deps.Cards.RequestAction(ctx, kind, cardID, userID)
		if err != nil {
			return messageResponse{}, err
		}

		return messageResponse{Message: "An approval link was sent to the card email."}, nil
	}).request(cardIDRequest).status(http.StatusAccepted)
}

type approvalQuery struct {
	Token krypto.Token `schema:"token,required"`
}

func (s *Server) approveHandler(kind card.Kind) http.Handler {
	return mapBoth(s, func(ctx context.Context, in approvalQuery) (approvalResponse, error) {
		a, err := s.deps.Cards.Approve(ctx, kind, in.Token)
		if err != nil {
			return approvalResponse{}, err
		}

		out := approvalResponse{
			Status:  a.Status,
			Message: a.Message,
		}
		if a.Card != nil {
			c := newCardResponse(*a.Card, s.NowFunc())
			out.Card = &c
		}

		return out, nil
	}).request(func(r *http.Request) (approvalQuery, error) {
		var q approvalQuery
		err := s.decodeQuery(r, &q)
		if err != nil {
			// Malformed links are reported like unknown tokens.
			var invalid errorz.InvalidInput
			if errors.As(err, &invalid) {
				return q, errorz.ErrNotFound
			}
			return q, err
		}
		return q, nil
	})
}

func (s *Server) publicCardHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, shortName string) (publicCardResponse, error) {
		c, err := s.deps.Cards.GetByShortName(ctx, shortName)
		if err != nil {
			return publicCardResponse{}, err
		}

		return newPublicCardResponse(c), nil
	}).request(func(r *http.Request) (string, error) {
		return chi.URLParam(r, "shortName"), nil
	})
}
