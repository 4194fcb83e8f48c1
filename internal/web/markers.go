package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/willemschots/cardhub/internal/card"
)

type markerBody struct {
	ImageURL string `json:"imageUrl"`
	FileURL  string `json:"fileUrl"`
}

func (s *Server) createMarkerHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, in markerBody) (markerResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return markerResponse{}, err
		}

		m, err := s.deps.Cards.CreateMarker(ctx, userID, card.MarkerRequest(in))
		if err != nil {
			return markerResponse{}, err
		}

		return newMarkerResponse(m), nil
	}).status(http.StatusCreated)
}

func (s *Server) listMarkersHandler() http.Handler {
	return mapBoth(s, func(ctx context.Context, _ struct{}) ([]markerResponse, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		markers, err := s.deps.Cards.ListMarkers(ctx, userID)
		if err != nil {
			return nil, err
		}

		out := make([]markerResponse, 0, len(markers))
		for _, m := range markers {
			out = append(out, newMarkerResponse(m))
		}
		return out, nil
	}).request(noBody)
}

func (s *Server) deleteMarkerHandler() http.Handler {
	return mapRequest(s, func(ctx context.Context, uniqueID string) error {
		userID, err := currentUser(ctx)
		if err != nil {
			return err
		}

		return s.deps.Cards.DeleteMarker(ctx, userID, uniqueID)
	}).request(func(r *http.Request) (string, error) {
		return chi.URLParam(r, "uniqueID"), nil
	})
}
