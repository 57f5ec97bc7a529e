package interactive

import (
	"encoding/json"
	"time"
)

// Participant is a viewer connected to the interactive session.
// Timestamps are milliseconds since the Unix epoch.
type Participant struct {
	SessionID   string                     `json:"sessionID"`
	UserID      int64                      `json:"userID,omitempty"`
	Username    string                     `json:"username,omitempty"`
	Level       int                        `json:"level,omitempty"`
	LastInputAt int64                      `json:"lastInputAt,omitempty"`
	ConnectedAt int64                      `json:"connectedAt,omitempty"`
	Disabled    bool                       `json:"disabled,omitempty"`
	GroupID     string                     `json:"groupID,omitempty"`
	Meta        map[string]json.RawMessage `json:"meta,omitempty"`
}

// Connected returns ConnectedAt as a time.
func (p Participant) Connected() time.Time {
	return time.UnixMilli(p.ConnectedAt)
}

// LastInput returns LastInputAt as a time.
func (p Participant) LastInput() time.Time {
	return time.UnixMilli(p.LastInputAt)
}

// Scene is a named set of controls shown to a group.
type Scene struct {
	SceneID  string                     `json:"sceneID"`
	Controls []Control                  `json:"controls,omitempty"`
	Meta     map[string]json.RawMessage `json:"meta,omitempty"`
}

// Position places a control on one grid size.
type Position struct {
	Size   string `json:"size"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// Control is a button, joystick or other input within a scene.
// Meta carries custom properties set by the game client.
type Control struct {
	ControlID string                     `json:"controlID"`
	Kind      string                     `json:"kind,omitempty"`
	Disabled  bool                       `json:"disabled,omitempty"`
	Text      string                     `json:"text,omitempty"`
	Cost      int                        `json:"cost,omitempty"`
	Cooldown  int64                      `json:"cooldown,omitempty"`
	Progress  *float64                   `json:"progress,omitempty"`
	Position  []Position                 `json:"position,omitempty"`
	Meta      map[string]json.RawMessage `json:"meta,omitempty"`
}

// Group assigns participants to a scene.
type Group struct {
	GroupID string                     `json:"groupID"`
	SceneID string                     `json:"sceneID,omitempty"`
	Meta    map[string]json.RawMessage `json:"meta,omitempty"`
}

// MemoryStats reports the session's memory use on the server.
type MemoryStats struct {
	UsedBytes  int64          `json:"usedBytes"`
	TotalBytes int64          `json:"totalBytes"`
	Resources  map[string]int `json:"resources,omitempty"`
}

// Input is one participant interaction with a control.
type Input struct {
	ParticipantID string     `json:"participantID"`
	TransactionID string     `json:"transactionID,omitempty"`
	Input         InputEvent `json:"input"`
}

// InputEvent is the control-specific part of an Input.
type InputEvent struct {
	ControlID string  `json:"controlID"`
	Event     string  `json:"event"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Value     string  `json:"value,omitempty"`
}
