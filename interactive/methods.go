package interactive

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyScene is returned by control methods called without a scene id.
var ErrEmptyScene = errors.New("interactive: scene id required")

// GetTime returns the server clock.
func (c *Client) GetTime(ctx context.Context) (time.Time, error) {
	var reply struct {
		Time int64 `json:"time"`
	}
	if err := c.call(ctx, "getTime", nil, &reply); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(reply.Time), nil
}

// GetMemoryStats returns the session's memory use.
func (c *Client) GetMemoryStats(ctx context.Context) (*MemoryStats, error) {
	var stats MemoryStats
	if err := c.call(ctx, "getMemoryStats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetScenes returns every scene with its controls.
func (c *Client) GetScenes(ctx context.Context) ([]Scene, error) {
	var reply struct {
		Scenes []Scene `json:"scenes"`
	}
	if err := c.call(ctx, "getScenes", nil, &reply); err != nil {
		return nil, err
	}
	return reply.Scenes, nil
}

type controlsParams struct {
	SceneID  string    `json:"sceneID"`
	Controls []Control `json:"controls"`
}

// CreateControls adds controls to a scene and returns the scene as stored.
func (c *Client) CreateControls(ctx context.Context, sceneID string, controls []Control) (*Scene, error) {
	if sceneID == "" {
		return nil, ErrEmptyScene
	}
	var scene Scene
	if err := c.call(ctx, "createControls", controlsParams{SceneID: sceneID, Controls: controls}, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// UpdateControls changes existing controls in a scene.
func (c *Client) UpdateControls(ctx context.Context, sceneID string, controls []Control) (*Scene, error) {
	if sceneID == "" {
		return nil, ErrEmptyScene
	}
	var scene Scene
	if err := c.call(ctx, "updateControls", controlsParams{SceneID: sceneID, Controls: controls}, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// DeleteControls removes controls from a scene.
func (c *Client) DeleteControls(ctx context.Context, sceneID string, controlIDs ...string) error {
	if sceneID == "" {
		return ErrEmptyScene
	}
	params := struct {
		SceneID    string   `json:"sceneID"`
		ControlIDs []string `json:"controlIDs"`
	}{sceneID, controlIDs}
	return c.call(ctx, "deleteControls", params, nil)
}

type groupsParams struct {
	Groups []Group `json:"groups"`
}

type groupsReply struct {
	Groups []Group `json:"groups"`
}

// GetGroups returns every group.
func (c *Client) GetGroups(ctx context.Context) ([]Group, error) {
	var reply groupsReply
	if err := c.call(ctx, "getGroups", nil, &reply); err != nil {
		return nil, err
	}
	return reply.Groups, nil
}

// CreateGroups adds groups and returns them as stored.
func (c *Client) CreateGroups(ctx context.Context, groups ...Group) ([]Group, error) {
	var reply groupsReply
	if err := c.call(ctx, "createGroups", groupsParams{Groups: groups}, &reply); err != nil {
		return nil, err
	}
	return reply.Groups, nil
}

// UpdateGroups changes existing groups, for example the scene they show.
func (c *Client) UpdateGroups(ctx context.Context, groups ...Group) ([]Group, error) {
	var reply groupsReply
	if err := c.call(ctx, "updateGroups", groupsParams{Groups: groups}, &reply); err != nil {
		return nil, err
	}
	return reply.Groups, nil
}

// UpdateParticipants changes participants, for example their group or
// disabled flag, and returns them as stored.
func (c *Client) UpdateParticipants(ctx context.Context, participants ...Participant) ([]Participant, error) {
	params := struct {
		Participants []Participant `json:"participants"`
	}{participants}
	var reply participantsReply
	if err := c.call(ctx, "updateParticipants", params, &reply); err != nil {
		return nil, err
	}
	return reply.Participants, nil
}

// Capture charges the participant for the input identified by transactionID.
func (c *Client) Capture(ctx context.Context, transactionID string) error {
	params := struct {
		TransactionID string `json:"transactionID"`
	}{transactionID}
	return c.call(ctx, "capture", params, nil)
}
