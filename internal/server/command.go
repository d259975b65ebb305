package server

import (
	"encoding/json"
	"fmt"
)

// Client actions.
const (
	ActionPress   = "press"
	ActionRelease = "release"
	ActionStart   = "start"
)

// Command is one client to server message.
type Command struct {
	ClientID string `json:"-"`
	Action   string `json:"action"`
	Key      string `json:"key,omitempty"`
}

// DecodeCommand parses and checks an inbound frame.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	switch cmd.Action {
	case ActionPress, ActionRelease:
		if cmd.Key == "" {
			return Command{}, fmt.Errorf("%w: %s without key", ErrInvalidMessage, cmd.Action)
		}
	case ActionStart:
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, cmd.Action)
	}
	return cmd, nil
}
