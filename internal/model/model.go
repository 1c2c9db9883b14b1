package model

import "time"

// Reservation statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// IsActiveStatus reports whether a status counts against slot capacity.
func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// KnownStatus reports whether a status is one of the recognized states.
func KnownStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// WeekdayRule holds recurring operating hours for one weekday.
// Weekday uses 1-7 (Monday-Sunday).
type WeekdayRule struct {
	ID        int64     `json:"id"`
	Weekday   int       `json:"weekday"`
	OpenTime  string    `json:"open_time"`  // "09:00"
	CloseTime string    `json:"close_time"` // "17:00"
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DateOverride replaces the weekday rule for a specific date.
// A closed override wins regardless of hours; otherwise OpenTime/CloseTime
// define the special hours for that date.
type DateOverride struct {
	ID        int64     `json:"id"`
	Day       string    `json:"day"` // "2006-01-02"
	Closed    bool      `json:"closed"`
	OpenTime  string    `json:"open_time,omitempty"`
	CloseTime string    `json:"close_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reservation is a member booking for one slot on one date.
// Reservations are never deleted; cancellation is a status, which keeps
// history available for the activity feed and capacity recomputation.
type Reservation struct {
	ID             int64     `json:"id"`
	Ref            string    `json:"ref"` // external reference code
	MemberRef      string    `json:"member_ref"`
	Day            string    `json:"day"`        // "2006-01-02"
	SlotStart      string    `json:"slot_start"` // "10:00"
	Guests         int       `json:"guests"`
	Status         string    `json:"status"`
	SpecialRequest string    `json:"special_request,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int64     `json:"version"`
}

// SlotKey returns the serialization key for the reservation's date+slot.
func (r *Reservation) SlotKey() string {
	return SlotKey(r.Day, r.SlotStart)
}

// SlotKey builds the per-slot serialization key used for booking mutual
// exclusion. Reservations for different keys never block each other.
func SlotKey(day, slotStart string) string {
	return day + "T" + slotStart
}

// ActivityEvent is one entry of the recent-activity feed.
type ActivityEvent struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
