package amqp

import (
	"encoding/json"
	"time"
)

// Entity names carried in MutationEvent.Entity.
const (
	EntityUser    = "user"
	EntityExpense = "expense"
	EntityBook    = "book"
	EntityChapter = "chapter"
	EntityKeyword = "keyword"
)

// Actions carried in MutationEvent.Action.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// MutationEvent announces a committed write. Paths lists the views whose
// cached data the write made stale.
type MutationEvent struct {
	Entity    string            `json:"entity"`
	Action    string            `json:"action"`
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id,omitempty"`
	Paths     []string          `json:"paths,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewMutationEvent stamps the event with the current time.
func NewMutationEvent(entity, action, id, ownerID string) *MutationEvent {
	return &MutationEvent{
		Entity:    entity,
		Action:    action,
		ID:        id,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
	}
}

// WithPaths sets the invalidated view paths.
func (m *MutationEvent) WithPaths(paths ...string) *MutationEvent {
	m.Paths = paths
	return m
}

// With adds one payload field.
func (m *MutationEvent) With(key, value string) *MutationEvent {
	if m.Payload == nil {
		m.Payload = make(map[string]string)
	}
	m.Payload[key] = value
	return m
}

// Type is "<entity>.<action>", sent as the AMQP message type.
func (m *MutationEvent) Type() string {
	return m.Entity + "." + m.Action
}

func (m *MutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationEventFromJSON(data []byte) (*MutationEvent, error) {
	var msg MutationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
