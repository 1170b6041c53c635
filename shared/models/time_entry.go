package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrTimeEntryStopped = errors.New("time entry already stopped")

// TimeEntry represents time an agent tracked against a project
type TimeEntry struct {
	Owned           `bson:",inline"`
	ProjectID       primitive.ObjectID  `json:"projectId" bson:"projectId"`
	TicketID        *primitive.ObjectID `json:"ticketId,omitempty" bson:"ticketId,omitempty"`
	UserID          primitive.ObjectID  `json:"userId" bson:"userId"`
	Description     string              `json:"description,omitempty" bson:"description,omitempty"`
	StartedAt       time.Time           `json:"startedAt" bson:"startedAt"`
	EndedAt         *time.Time          `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	DurationSeconds int                 `json:"durationSeconds" bson:"durationSeconds"`
}

// Running checks if the entry is still being tracked
func (e *TimeEntry) Running() bool {
	return e.EndedAt == nil
}

// Elapsed returns the tracked duration in seconds as of now
func (e *TimeEntry) Elapsed(now time.Time) int {
	if e.EndedAt != nil {
		return int(e.EndedAt.Sub(e.StartedAt).Seconds())
	}
	return int(now.Sub(e.StartedAt).Seconds())
}

// Stop ends the entry and freezes its duration
func (e *TimeEntry) Stop(now time.Time) error {
	if !e.Running() {
		return ErrTimeEntryStopped
	}
	e.EndedAt = &now
	e.DurationSeconds = e.Elapsed(now)
	e.UpdatedAt = now
	return nil
}
