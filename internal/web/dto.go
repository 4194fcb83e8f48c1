package web

import (
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/account"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/email"
)

type linkJSON struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// contentJSON is the editable part of a card.
type contentJSON struct {
	Name          string        `json:"name"`
	Title         string        `json:"title"`
	About         string        `json:"about"`
	Email         email.Address `json:"email"`
	LogoImageURL  string        `json:"logoImageUrl"`
	CardImageURL  string        `json:"cardImageUrl"`
	BackgroundURL string        `json:"backgroundUrl"`
	Links         []linkJSON    `json:"links"`
	MarkerID      string        `json:"markerId"`
}

func newContentJSON(c card.Content) contentJSON {
	links := make([]linkJSON, 0, len(c.Links))
	for _, l := range c.Links {
		links = append(links, linkJSON(l))
	}

	return contentJSON{
		Name:          c.Name,
		Title:         c.Title,
		About:         c.About,
		Email:         c.Email,
		LogoImageURL:  c.LogoImageURL,
		CardImageURL:  c.CardImageURL,
		BackgroundURL: c.BackgroundURL,
		Links:         links,
		MarkerID:      c.MarkerID,
	}
}

func (c contentJSON) content() card.Content {
	links := make([]card.Link, 0, len(c.Links))
	for _, l := range c.Links {
		links = append(links, card.Link(l))
	}

	return card.Content{
		Name:          c.Name,
		Title:         c.Title,
		About:         c.About,
		Email:         c.Email,
		LogoImageURL:  c.LogoImageURL,
		CardImageURL:  c.CardImageURL,
		BackgroundURL: c.BackgroundURL,
		Links:         links,
		MarkerID:      c.MarkerID,
	}
}

type cardBody struct {
	ShortName string `json:"shortName"`
	contentJSON
}

// cardResponse is a card as seen by its owner.
type cardResponse struct {
	ID        uuid.UUID `json:"id"`
	ShortName string    `json:"shortName"`
	DisplayID string    `json:"displayId"`
	contentJSON
	Active           bool      `json:"active"`
	Editable         bool      `json:"editable"`
	NumberOfEdits    int       `json:"numberOfEdits"`
	EditableUntil    time.Time `json:"editableUntil"`
	EmailEditable    bool      `json:"emailEditable"`
	Deletable        bool      `json:"deletable"`
	DateTillDeletion time.Time `json:"dateTillDeletion"`
	CanEdit          bool      `json:"canEdit"`
	CanDelete        bool      `json:"canDelete"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func newCardResponse(c card.Card, now time.Time) cardResponse {
	return cardResponse{
		ID:               c.ID,
		ShortName:        c.ShortName,
		DisplayID:        c.DisplayID,
		contentJSON:      newContentJSON(c.Content),
		Active:           c.Active,
		Editable:         c.Editable,
		NumberOfEdits:    c.NumberOfEdits,
		EditableUntil:    c.EditableUntil,
		EmailEditable:    c.EmailEditable,
		Deletable:        c.Deletable,
		DateTillDeletion: c.DateTillDeletion,
		CanEdit:          c.CanEdit(now),
		CanDelete:        c.CanDelete(now),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func newCardsResponse(cards []card.Card, now time.Time) []cardResponse {
	out := make([]cardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, newCardResponse(c, now))
	}
	return out
}

// publicCardResponse is a card as seen by visitors.
type publicCardResponse struct {
	ShortName string `json:"shortName"`
	DisplayID string `json:"displayId"`
	contentJSON
}

func newPublicCardResponse(c card.Card) publicCardResponse {
	return publicCardResponse{
		ShortName:   c.ShortName,
		DisplayID:   c.DisplayID,
		contentJSON: newContentJSON(c.Content),
	}
}

type approvalResponse struct {
	Status  bool          `json:"status"`
	Message string        `json:"message"`
	Card    *cardResponse `json:"card,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type markerResponse struct {
	UniqueID  string    `json:"uniqueId"`
	ImageURL  string    `json:"imageUrl"`
	FileURL   string    `json:"fileUrl"`
	Deletable bool      `json:"deletable"`
	CreatedAt time.Time `json:"createdAt"`
}

func newMarkerResponse(m card.Marker) markerResponse {
	return markerResponse{
		UniqueID:  m.UniqueID,
		ImageURL:  m.ImageURL,
		FileURL:   m.FileURL,
		Deletable: m.Deletable,
		CreatedAt: m.CreatedAt,
	}
}

type accountResponse struct {
	ID                 uuid.UUID     `json:"id"`
	Email              email.Address `json:"email"`
	AvailableCardSlots int           `json:"availableCardSlots"`
	CreatedAt          time.Time     `json:"createdAt"`
}

func newAccountResponse(u account.User) accountResponse {
	return accountResponse{
		ID:                 u.ID,
		Email:              u.Email,
		AvailableCardSlots: u.AvailableCardSlots,
		CreatedAt:          u.CreatedAt,
	}
}
