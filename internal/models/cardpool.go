package models

import (
	"time"

	"github.com/google/uuid"
)

// CardPoolEntry is one physical card instance in a shared draft pool.
// Duplicates of the same card are separate entries with separate IDs.
type CardPoolEntry struct {
	ID            uuid.UUID     `json:"id"`
	PoolID        uuid.UUID     `json:"pool_id"`
	Name          string        `json:"name"`
	ColorIdentity ColorIdentity `json:"color_identity"`
	Cost          int           `json:"cost"`   // in Cubucks
	Rating        float64       `json:"rating"` // external popularity/strength score
	Drafted       bool          `json:"drafted"`
	CreatedAt     time.Time     `json:"created_at"`
}
