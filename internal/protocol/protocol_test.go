package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeEndToEndScenario(t *testing.T) {
	msg := []byte(`[[7],
		{"update-type":"make-node","node":1,"type":"root"},
		{"update-type":"make-node","node":2,"type":"div"},
		{"update-type":"add","node":1,"attr":"children","index":0,"value":2}]`)

	entries, err := Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	batch, ok := entries[0].(CorrelationBatch)
	if !ok || len(batch.IDs) != 1 || batch.IDs[0] != 7 {
		t.Fatalf("unexpected batch: %#v", entries[0])
	}
	if mk, ok := entries[1].(MakeNode); !ok || mk.Node != 1 || mk.NodeType != "root" {
		t.Fatalf("unexpected entry 1: %#v", entries[1])
	}
	if mk, ok := entries[2].(MakeNode); !ok || mk.Node != 2 || mk.NodeType != "div" {
		t.Fatalf("unexpected entry 2: %#v", entries[2])
	}
	add, ok := entries[3].(Add)
	if !ok || add.Node != 1 || add.Attr != AttrChildren || add.Index != 0 {
		t.Fatalf("unexpected entry 3: %#v", entries[3])
	}
	child, err := ParseNodeRef(add.Value)
	if err != nil || child != 2 {
		t.Fatalf("unexpected child ref %v err=%v", child, err)
	}
}

func TestDecodeRejectsMalformedMessages(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want error
	}{
		{"not json", `{{`, ErrMalformedMessage},
		{"top level object", `{"update-type":"destroy","node":1}`, ErrMalformedMessage},
		{"top level null", `null`, ErrMalformedMessage},
		{"miscased node key", `[{"update-type":"make-node","Node":1,"type":"root"}]`, ErrMalformedMessage},
		{"miscased type key", `[{"update-type":"make-node","node":1,"TYPE":"root"}]`, ErrMalformedMessage},
		{"miscased update type key", `[{"Update-Type":"destroy","node":1}]`, ErrMalformedMessage},
		{"scalar entry", `[5]`, ErrMalformedMessage},
		{"bad batch", `[["x"]]`, ErrMalformedMessage},
		{"missing update type", `[{"node":1}]`, ErrMissingField},
		{"missing node", `[{"update-type":"destroy"}]`, ErrMissingField},
		{"make-node without type", `[{"update-type":"make-node","node":1}]`, ErrMissingField},
		{"add without index", `[{"update-type":"add","node":1,"attr":"children","value":2}]`, ErrMissingField},
		{"set-attr without value", `[{"update-type":"set-attr","node":1,"attr":"rect"}]`, ErrMissingField},
		{"unknown update type", `[{"update-type":"rename","node":1}]`, ErrUnknownUpdateType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Decode([]byte(tc.msg))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("every decode failure must be malformed-message, got %v", err)
			}
			if entries != nil {
				t.Fatalf("no partial entries on failure")
			}
		})
	}
}

func TestDecodeEmptyMessage(t *testing.T) {
	entries, err := Decode([]byte(`[]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestEncodeDecodeOperations(t *testing.T) {
	in := []Entry{
		CorrelationBatch{IDs: []uint64{1, 2}},
		MakeNode{Node: 3, NodeType: "scroll"},
		SetAttr{Node: 3, Attr: "position", Value: Value(Rect{Width: 10, Height: 20})},
		Add{Node: 1, Attr: AttrChildren, Index: 0, Value: Value(3)},
		Remove{Node: 1, Attr: AttrChildren, Value: Value(3)},
		Destroy{Node: 3},
	}
	msg, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(out))
	}
	for i := range in {
		if op, ok := in[i].(Operation); ok {
			got, ok := out[i].(Operation)
			if !ok || got.Type() != op.Type() || got.Target() != op.Target() {
				t.Fatalf("entry %d mismatch: %#v vs %#v", i, in[i], out[i])
			}
		}
	}
	rect, err := ParseRect(out[2].(SetAttr).Value)
	if err != nil || rect.Height != 20 {
		t.Fatalf("rect did not survive: %+v err=%v", rect, err)
	}
}

func TestParseValues(t *testing.T) {
	p, err := ParsePoint(json.RawMessage(`{"x":1.5,"y":-2}`))
	if err != nil || p != (Point{X: 1.5, Y: -2}) {
		t.Fatalf("point: %+v err=%v", p, err)
	}
	if _, err := ParsePoint(json.RawMessage(`{"x":1}`)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected invalid point, got %v", err)
	}
	if _, err := ParseRect(json.RawMessage(`{"x":0,"y":0,"width":-1,"height":1}`)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected invalid rect, got %v", err)
	}
	c, err := ParseColor(json.RawMessage(`{"r":10,"g":20,"b":30}`))
	if err != nil || c != (Color{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("color: %+v err=%v", c, err)
	}
	if _, err := ParseColor(json.RawMessage(`{"r":256,"g":0,"b":0,"a":0}`)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected out-of-range channel, got %v", err)
	}
}

func TestParseCallback(t *testing.T) {
	cases := map[string]CallbackPolicy{
		`"noria-handler-sync"`:  CallbackSync,
		`"noria-handler-async"`: CallbackAsync,
		`"-noria-handler"`:      CallbackAbsent,
	}
	for raw, want := range cases {
		got, err := ParseCallback(json.RawMessage(raw))
		if err != nil || got != want {
			t.Fatalf("%s: got %v err=%v", raw, got, err)
		}
		if got.Wire() != raw[1:len(raw)-1] {
			t.Fatalf("wire form mismatch for %s: %s", raw, got.Wire())
		}
	}
	if _, err := ParseCallback(json.RawMessage(`"handler"`)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected invalid callback, got %v", err)
	}
}

func TestCallbackEventWireShape(t *testing.T) {
	e := CallbackEvent{LogID: 4, TS: 99, Node: 2, Key: KeyOnClick, Arguments: [2]float64{5, 6}}
	b, err := EncodeCallbackEvent(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"log_id":4,"ts":99,"node":2,"key":"on-click","arguments":[5,6]}`
	if string(b) != want {
		t.Fatalf("unexpected wire form:\n got %s\nwant %s", b, want)
	}
	back, err := DecodeCallbackEvent(b)
	if err != nil || back != e {
		t.Fatalf("decode: %+v err=%v", back, err)
	}
	if _, err := EncodeCallbackEvent(CallbackEvent{Key: "on-hover"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
}

func TestHandshakeStyles(t *testing.T) {
	if got := string(Handshake(HandshakeLegacy, "")); got != `{kind : "webrender"}` {
		t.Fatalf("unexpected legacy handshake %q", got)
	}
	if got := string(Handshake(HandshakeJSON, "")); got != `{"kind":"webrender"}` {
		t.Fatalf("unexpected json handshake %q", got)
	}
	for _, style := range []HandshakeStyle{HandshakeLegacy, HandshakeJSON} {
		kind, err := ParseHandshake(Handshake(style, "inspector"))
		if err != nil || kind != "inspector" {
			t.Fatalf("%s: kind=%q err=%v", style, kind, err)
		}
	}
	if _, err := ParseHandshake([]byte("hello")); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected malformed handshake, got %v", err)
	}
	if _, err := ParseHandshakeStyle("xml"); err == nil {
		t.Fatalf("expected unknown style error")
	}
}
