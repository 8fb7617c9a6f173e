// Package events owns the promoted occurrences (matches, campaigns, launches)
// that share tracking links. The attribution core only reads the anchor date;
// everything else is display data for the admin surface.
package events

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventNotFoundError represents an error when an event is not found
type EventNotFoundError struct {
	EventID uint
}

func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("event not found: %d", e.EventID)
}

// Event represents a discrete dated occurrence promoted through shared links
type Event struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"not null;size:255" json:"name"`
	AnchorDate time.Time `gorm:"index;type:datetime;not null" json:"anchor_date"`
	ProfileID  *uint     `gorm:"index" json:"profile_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

// CreateEvent creates a new event
func CreateEvent(db *gorm.DB, event *Event) error {
	if event.Name == "" {
		return fmt.Errorf("event name is required")
	}
	if event.AnchorDate.IsZero() {
		return fmt.Errorf("event anchor date is required")
	}

	now := time.Now().UTC()
	event.AnchorDate = event.AnchorDate.UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	return db.Create(event).Error
}

// GetEventByID retrieves an event by ID
func GetEventByID(db *gorm.DB, id uint) (*Event, error) {
	var event Event
	if err := db.First(&event, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &EventNotFoundError{EventID: id}
		}
		return nil, fmt.Errorf("unexpected error querying event: %w", err)
	}
	return &event, nil
}

// GetEventsByIDs retrieves a batch of events keyed by ID. Missing IDs are
// simply absent from the result map; callers decide whether that is an error.
func GetEventsByIDs(db *gorm.DB, ids []uint) (map[uint]Event, error) {
	result := make(map[uint]Event, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var list []Event
	if err := db.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	for _, event := range list {
		result[event.ID] = event
	}
	return result, nil
}

// GetAllEvents retrieves all events ordered by anchor date
func GetAllEvents(db *gorm.DB) ([]Event, error) {
	var list []Event
	if err := db.Order("anchor_date ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteEvent removes an event row. Association cleanup is the attribution
// service's job; callers go through Service.HandleEventDeletion.
func DeleteEvent(db *gorm.DB, id uint) error {
	result := db.Delete(&Event{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete event %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return &EventNotFoundError{EventID: id}
	}
	return nil
}
