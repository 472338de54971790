package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateSource is returned by stores when a Land with the same source id exists.
	ErrDuplicateSource = errors.New("land with this source id already exists")
	// ErrUnparseable signals that a message does not carry a listing.
	ErrUnparseable = errors.New("message is not a parseable listing")
	// ErrNoContent signals that a message has no usable body.
	ErrNoContent = errors.New("message has no usable content")
)

// Candidate is the transient parser output for a single mailbox item.
type Candidate struct {
	SourceID     string
	Title        string
	URL          string
	Price        *float64
	Area         *float64
	Municipality string
	LandType     string
	Description  string
	LegalStatus  string
	ReceivedAt   time.Time
}

// Land is the durable listing entity.
type Land struct {
	ID           int64
	SourceID     string
	Title        string
	URL          string
	Price        *float64
	Area         *float64
	Municipality string
	LandType     string
	Description  string
	LegalStatus  string
	ReceivedAt   time.Time

	Attributes Attributes

	ScoreTotal *float64
	Breakdown  Breakdown

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLand builds a Land from a parsed candidate.
func NewLand(c Candidate) Land {
	return Land{
		SourceID:     c.SourceID,
		Title:        c.Title,
		URL:          c.URL,
		Price:        c.Price,
		Area:         c.Area,
		Municipality: c.Municipality,
		LandType:     c.LandType,
		Description:  c.Description,
		LegalStatus:  c.LegalStatus,
		ReceivedAt:   c.ReceivedAt,
	}
}

// SourceID derives the record identity from a mailbox item identifier.
func SourceID(prefix string, id ItemID) string {
	if prefix == "" {
		prefix = "imap"
	}
	return fmt.Sprintf("%s_%d", prefix, id)
}
