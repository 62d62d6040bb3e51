package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	KeyOnClick = "on-click"
	KeyOnWheel = "on-wheel"
)

// CallbackEvent is the outbound report of a user interaction with a node.
type CallbackEvent struct {
	LogID     uint64     `json:"log_id"`
	TS        uint64     `json:"ts"`
	Node      NodeID     `json:"node"`
	Key       string     `json:"key"`
	Arguments [2]float64 `json:"arguments"`
}

// NewCallbackEvent stamps ts with wall-clock milliseconds.
func NewCallbackEvent(logID uint64, node NodeID, key string, args [2]float64) CallbackEvent {
	return CallbackEvent{
		LogID:     logID,
		TS:        uint64(time.Now().UnixMilli()),
		Node:      node,
		Key:       key,
		Arguments: args,
	}
}

func (e CallbackEvent) Validate() error {
	switch e.Key {
	case KeyOnClick, KeyOnWheel:
		return nil
	default:
		return fmt.Errorf("%w: key %q", ErrInvalidEvent, e.Key)
	}
}

// EncodeCallbackEvent returns the JSON object body, without framing.
func EncodeCallbackEvent(e CallbackEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DecodeCallbackEvent is used by peers and tests to read client events.
func DecodeCallbackEvent(data []byte) (CallbackEvent, error) {
	var e CallbackEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return CallbackEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return CallbackEvent{}, err
	}
	return e, nil
}
