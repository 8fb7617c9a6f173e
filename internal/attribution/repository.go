package attribution

import (
	"fmt"

	"gorm.io/gorm"
)

// GetAssociation retrieves the association for a (link, event) pair, or nil
// when the pair is not associated.
func GetAssociation(db *gorm.DB, linkID, eventID uint) (*Association, error) {
	var assoc Association
	err := db.Where("link_id = ? AND event_id = ?", linkID, eventID).First(&assoc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected error querying association: %w", err)
	}
	return &assoc, nil
}

// GetAssociationsForLink returns all associations of a link ordered by ID,
// the order the orchestrator reloads them in.
func GetAssociationsForLink(db *gorm.DB, linkID uint) ([]Association, error) {
	var list []Association
	err := db.Where("link_id = ?", linkID).Order("id ASC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load associations for link %d: %w", linkID, err)
	}
	return list, nil
}

// GetAssociationsForEvent returns all associations of an event ordered by
// link ID; this is the display read path for per-event cached metrics.
func GetAssociationsForEvent(db *gorm.DB, eventID uint) ([]Association, error) {
	var list []Association
	err := db.Where("event_id = ?", eventID).Order("link_id ASC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load associations for event %d: %w", eventID, err)
	}
	return list, nil
}

// LinkIDsForEvent returns the distinct link IDs associated with an event,
// used by the deletion cascade.
func LinkIDsForEvent(db *gorm.DB, eventID uint) ([]uint, error) {
	var linkIDs []uint
	err := db.Model(&Association{}).
		Where("event_id = ?", eventID).
		Order("link_id ASC").
		Pluck("link_id", &linkIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load link ids for event %d: %w", eventID, err)
	}
	return linkIDs, nil
}
