package domain

import (
	"encoding/json"
	"testing"
)

func TestEventIDDecodesStringAndNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want EventID
	}{
		{"string", `{"type":"join","event_id":"7"}`, "7"},
		{"number", `{"type":"join","event_id":7}`, "7"},
		{"large number", `{"type":"join","event_id":123456789}`, "123456789"},
		{"null", `{"type":"join","event_id":null}`, ""},
		{"missing", `{"type":"join"}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var msg JoinMessage
			if err := json.Unmarshal([]byte(tc.in), &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.EventID != tc.want {
				t.Fatalf("EventID = %q, want %q", msg.EventID, tc.want)
			}
		})
	}
}

func TestEventIDRejectsOtherTypes(t *testing.T) {
	for _, in := range []string{
		`{"type":"join","event_id":true}`,
		`{"type":"join","event_id":[1]}`,
		`{"type":"join","event_id":{"id":1}}`,
		`{"type":"join","event_id":1.5}`,
	} {
		var msg JoinMessage
		if err := json.Unmarshal([]byte(in), &msg); err == nil {
			t.Fatalf("decoded %s without error, EventID=%q", in, msg.EventID)
		}
	}
}

func TestAckConstructors(t *testing.T) {
	ack := NewAck()
	if ack.Type != MsgTypeAudioAck || ack.Status != AckStatusSuccess {
		t.Fatalf("NewAck = %+v", ack)
	}

	errAck := NewAckError("boom")
	if errAck.Status != AckStatusError || errAck.Message != "boom" {
		t.Fatalf("NewAckError = %+v", errAck)
	}

	// Success acks must not carry an empty message field on the wire.
	data, _ := json.Marshal(ack)
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	if _, ok := raw["message"]; ok {
		t.Fatalf("success ack serialized a message field: %s", data)
	}
}

func TestPCMSamplesStayOpaque(t *testing.T) {
	in := `{"type":"audio_pcm_chunk","event_id":3,"samples":[0.25,-0.5]}`
	var msg AudioPCMMessage
	if err := json.Unmarshal([]byte(in), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(msg.Samples) != "[0.25,-0.5]" {
		t.Fatalf("samples = %s, want verbatim payload", msg.Samples)
	}
	if msg.EventID != "3" {
		t.Fatalf("event id = %q, want 3", msg.EventID)
	}
}
