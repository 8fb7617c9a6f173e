// Package profiles provides promotion profiles: reusable sets of default
// links that a newly created event inherits for bulk association.
package profiles

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProfileNotFoundError represents an error when a profile is not found
type ProfileNotFoundError struct {
	ProfileID uint
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile not found: %d", e.ProfileID)
}

// Profile is a named template of default links for new events
type Profile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"unique;not null;size:255" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Profile) TableName() string {
	return "profiles"
}

// ProfileLink binds a default link to a profile
type ProfileLink struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	ProfileID uint `gorm:"uniqueIndex:idx_profile_link;not null"`
	LinkID    uint `gorm:"uniqueIndex:idx_profile_link;not null"`
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (ProfileLink) TableName() string {
	return "profile_links"
}

// CreateProfile creates a new profile
func CreateProfile(db *gorm.DB, profile *Profile) error {
	if profile.Name == "" {
		return fmt.Errorf("profile name is required")
	}

	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	return db.Create(profile).Error
}

// AddLink attaches a default link to a profile; adding the same link twice is
// a no-op.
func AddLink(db *gorm.DB, profileID, linkID uint) error {
	err := db.Exec(`
        INSERT INTO profile_links (profile_id, link_id, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT(profile_id, link_id) DO NOTHING
    `, profileID, linkID, time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to add link %d to profile %d: %w", linkID, profileID, err)
	}
	return nil
}

// RemoveLink detaches a default link from a profile
func RemoveLink(db *gorm.DB, profileID, linkID uint) error {
	return db.Where("profile_id = ? AND link_id = ?", profileID, linkID).
		Delete(&ProfileLink{}).Error
}

// GetDefaultLinkIDs returns the link IDs an event created from this profile
// should inherit, in stable insertion order.
func GetDefaultLinkIDs(db *gorm.DB, profileID uint) ([]uint, error) {
	var profile Profile
	if err := db.First(&profile, profileID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &ProfileNotFoundError{ProfileID: profileID}
		}
		return nil, fmt.Errorf("unexpected error querying profile: %w", err)
	}

	var linkIDs []uint
	err := db.Model(&ProfileLink{}).
		Where("profile_id = ?", profileID).
		Order("id ASC").
		Pluck("link_id", &linkIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load profile links: %w", err)
	}
	return linkIDs, nil
}
