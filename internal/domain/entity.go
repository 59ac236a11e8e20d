package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// EntityType identifies a kind of provider record.
type EntityType string

const (
	EntityCountries  EntityType = "countries"
	EntityLeagues    EntityType = "leagues"
	EntityTeams      EntityType = "teams"
	EntitySeasons    EntityType = "seasons"
	EntityBookmakers EntityType = "bookmakers"
	EntityMarkets    EntityType = "markets"
	EntityFixtures   EntityType = "fixtures"
)

// AllEntityTypes lists every syncable entity type in dependency order.
var AllEntityTypes = []EntityType{
	EntityCountries,
	EntityLeagues,
	EntitySeasons,
	EntityTeams,
	EntityBookmakers,
	EntityMarkets,
	EntityFixtures,
}

// ParseEntityType validates a raw entity type name.
func ParseEntityType(raw string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllEntityTypes {
		if t == known {
			return t, nil
		}
	}
	return "", MarkUnknownEntityType(raw)
}

// ProviderRecord is one provider row normalized to the domain's field names.
type ProviderRecord struct {
	EntityType       EntityType        `json:"entity_type"`
	ExternalID       string            `json:"external_id"`
	Name             string            `json:"name"`
	Code             string            `json:"code,omitempty"`
	ImageURL         string            `json:"image_url,omitempty"`
	ParentExternalID string            `json:"parent_external_id,omitempty"`
	StartsAt         *time.Time        `json:"starts_at,omitempty"`
	Status           string            `json:"status,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Checksum hashes the fields that are persisted, so unchanged records diff to a no-op.
func (r ProviderRecord) Checksum() string {
	h := sha256.New()
	parts := []string{r.Name, r.Code, r.ImageURL, r.ParentExternalID, r.Status}
	if r.StartsAt != nil {
		parts = append(parts, r.StartsAt.UTC().Format(time.RFC3339))
	}
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// SportsEntity is the local copy of a provider record.
type SportsEntity struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	EntityType       EntityType `gorm:"type:text;not null;uniqueIndex:idx_sports_entities_ext" json:"entity_type"`
	ExternalID       string     `gorm:"type:text;not null;uniqueIndex:idx_sports_entities_ext" json:"external_id"`
	Name             string     `gorm:"type:text" json:"name"`
	Code             string     `gorm:"type:text" json:"code,omitempty"`
	ImageURL         string     `gorm:"type:text" json:"image_url,omitempty"`
	ParentExternalID string     `gorm:"type:text;index:idx_sports_entities_parent" json:"parent_external_id,omitempty"`
	StartsAt         *time.Time `gorm:"index:idx_sports_entities_starts_at" json:"starts_at,omitempty"`
	Status           string     `gorm:"type:text" json:"status,omitempty"`
	Checksum         string     `gorm:"type:text" json:"-"`
	SyncedAt         time.Time  `json:"synced_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SportsEntity.
func (SportsEntity) TableName() string {
	return "sports_entities"
}

// ApplyRecord copies a provider record onto the entity.
func (e *SportsEntity) ApplyRecord(r ProviderRecord, syncedAt time.Time) {
	e.EntityType = r.EntityType
	e.ExternalID = r.ExternalID
	e.Name = r.Name
	e.Code = r.Code
	e.ImageURL = r.ImageURL
	e.ParentExternalID = r.ParentExternalID
	e.StartsAt = r.StartsAt
	e.Status = r.Status
	e.Checksum = r.Checksum()
	e.SyncedAt = syncedAt
}
