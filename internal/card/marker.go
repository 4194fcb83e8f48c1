package card

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/errorz"
)

// MarkerRequest contains the references of an uploaded marker.
type MarkerRequest struct {
	ImageURL string
	FileURL  string
}

// CreateMarker stores a marker for the owner under a new random UniqueID.
func (s *Service) CreateMarker(ctx context.Context, ownerID uuid.UUID, req MarkerRequest) (Marker, error) {
	var errs errorz.InvalidInput
	errs.Check("imageUrl", checkURL(req.ImageURL, true))
	errs.Check("fileUrl", checkURL(req.FileURL, true))
	if err := errs.OrNil(); err != nil {
		return Marker{}, err
	}

	m := Marker{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ImageURL:  req.ImageURL,
		FileURL:   req.FileURL,
		CreatedAt: s.NowFunc(),
		Deletable: true,
	}

	err := s.inTx(ctx, func(tx Tx) error {
		var txErr error
		for range maxIDAttempts {
			m.UniqueID, txErr = newMarkerID()
			if txErr != nil {
				return txErr
			}

			txErr = tx.CreateMarker(&m)
			if !errors.Is(txErr, errorz.ErrDuplicate) {
				return txErr
			}
		}
		return fmt.Errorf("no free marker id after %d attempts: %w", maxIDAttempts, txErr)
	})
	if err != nil {
		return Marker{}, err
	}

	return m, nil
}

// ListMarkers returns the markers of the owner.
func (s *Service) ListMarkers(ctx context.Context, ownerID uuid.UUID) ([]Marker, error) {
	return s.store.FindMarkers(ctx, &MarkerFilter{
		OwnerIDs: []uuid.UUID{ownerID},
	})
}

// DeleteMarker deletes a marker of the owner. It returns ErrMarkerInUse
// while a live card references the marker.
func (s *Service) DeleteMarker(ctx context.Context, ownerID uuid.UUID, uniqueID string) error {
	return s.inTx(ctx, func(tx Tx) error {
		markers, err := tx.FindMarkers(&MarkerFilter{
			OwnerIDs:  []uuid.UUID{ownerID},
			UniqueIDs: []string{uniqueID},
		})
		if err != nil {
			return err
		}

		if len(markers) != 1 {
			return errorz.ErrNotFound
		}

		if !markers[0].Deletable {
			return ErrMarkerInUse
		}

		return tx.DeleteMarker(markers[0].ID)
	})
}
