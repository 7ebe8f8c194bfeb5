package slot

import "time"

// State is the lifecycle state of a slot.
type State int

const (
	// StateReserved slots have been granted but not uploaded to.
	StateReserved State = iota
	// StateFulfilled slots hold a stored blob.
	StateFulfilled
)

func (s State) String() string {
	switch s {
	case StateReserved:
		return "reserved"
	case StateFulfilled:
		return "fulfilled"
	}
	return "unknown"
}

// Slot is one reservation for a file transfer.
// File and UploadedAt are always written together; an empty File means the
// slot is still reserved.
type Slot struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	Token      string     `gorm:"column:token;size:32;not null;uniqueIndex" json:"token"`
	JID        string     `gorm:"column:jid;size:256;not null;index:idx_slots_jid_created,priority:1" json:"jid"`
	Name       string     `gorm:"column:name;size:255;not null" json:"name"`
	Size       int64      `gorm:"column:size;not null" json:"size"`
	Type       *string    `gorm:"column:type;size:255" json:"type,omitempty"`
	File       string     `gorm:"column:file;size:512;not null;default:''" json:"-"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null;index:idx_slots_jid_created,priority:2;index" json:"created_at"`
	UploadedAt *time.Time `gorm:"column:uploaded_at" json:"uploaded_at,omitempty"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Slot) TableName() string { return "slots" }

// State derives the lifecycle state from the persisted columns.
func (s *Slot) State() State {
	if s.File != "" && s.UploadedAt != nil {
		return StateFulfilled
	}
	return StateReserved
}

// ContentType returns the declared or adopted type, or "" if none.
func (s *Slot) ContentType() string {
	if s.Type == nil {
		return ""
	}
	return *s.Type
}
