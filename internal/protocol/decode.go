package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// wireOperation is the union of all operation fields. Pointers distinguish
// "absent" from zero values.
type wireOperation struct {
	UpdateType *string         `json:"update-type"`
	Node       *NodeID         `json:"node"`
	NodeType   *string         `json:"type"`
	Attr       *string         `json:"attr"`
	Index      *int            `json:"index"`
	Value      json.RawMessage `json:"value"`
}

// Decode parses one message into its ordered entries. Any failure is fatal
// for the whole message; no partial entry list is returned.
func Decode(msg []byte) ([]Entry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: message is not an array", ErrMalformedMessage)
	}
	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		e, err := decodeEntry(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// decodeEntry resolves the untagged union by JSON shape: arrays are
// correlation batches, objects are operations.
func decodeEntry(item json.RawMessage) (Entry, error) {
	trimmed := bytes.TrimLeft(item, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty entry", ErrMalformedMessage)
	}
	switch trimmed[0] {
	case '[':
		var ids []uint64
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return nil, fmt.Errorf("%w: correlation batch: %v", ErrMalformedMessage, err)
		}
		return CorrelationBatch{IDs: ids}, nil
	case '{':
		return decodeOperation(trimmed)
	default:
		return nil, fmt.Errorf("%w: entry is neither an id list nor an operation", ErrMalformedMessage)
	}
}

// operationKeys are the exact field names of an operation object.
var operationKeys = []string{"update-type", "node", "type", "attr", "index", "value"}

// checkOperationKeys rejects keys that differ from a field name only by case,
// which encoding/json would otherwise match.
func checkOperationKeys(raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: operation: %v", ErrMalformedMessage, err)
	}
	for key := range fields {
		for _, want := range operationKeys {
			if key != want && strings.EqualFold(key, want) {
				return fmt.Errorf("%w: operation key %q must be %q", ErrMalformedMessage, key, want)
			}
		}
	}
	return nil
}

func decodeOperation(raw []byte) (Operation, error) {
	if err := checkOperationKeys(raw); err != nil {
		return nil, err
	}
	var w wireOperation
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: operation: %v", ErrMalformedMessage, err)
	}
	if w.UpdateType == nil {
		return nil, missing("update-type")
	}
	if w.Node == nil {
		return nil, missing("node")
	}

	switch UpdateType(*w.UpdateType) {
	case UpdateMakeNode:
		if w.NodeType == nil {
			return nil, missing("type")
		}
		return MakeNode{Node: *w.Node, NodeType: *w.NodeType}, nil
	case UpdateDestroy:
		return Destroy{Node: *w.Node}, nil
	case UpdateAdd:
		if w.Attr == nil {
			return nil, missing("attr")
		}
		if w.Index == nil {
			return nil, missing("index")
		}
		if len(w.Value) == 0 {
			return nil, missing("value")
		}
		return Add{Node: *w.Node, Attr: *w.Attr, Index: *w.Index, Value: w.Value}, nil
	case UpdateRemove:
		if w.Attr == nil {
			return nil, missing("attr")
		}
		if len(w.Value) == 0 {
			return nil, missing("value")
		}
		return Remove{Node: *w.Node, Attr: *w.Attr, Value: w.Value}, nil
	case UpdateSetAttr:
		if w.Attr == nil {
			return nil, missing("attr")
		}
		if len(w.Value) == 0 {
			return nil, missing("value")
		}
		return SetAttr{Node: *w.Node, Attr: *w.Attr, Value: w.Value}, nil
	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrMalformedMessage, ErrUnknownUpdateType, *w.UpdateType)
	}
}

func missing(field string) error {
	return fmt.Errorf("%w: %w: %s", ErrMalformedMessage, ErrMissingField, field)
}
