package jsonfast

import (
	"encoding/json"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with positive capacity", func(t *testing.T) {
		b := New(512)
		if cap(b.buf) < 512 {
			t.Errorf("Expected capacity >= 512, got %d", cap(b.buf))
		}
	})

	t.Run("with zero capacity", func(t *testing.T) {
		b := New(0)
		if cap(b.buf) < 256 {
			t.Errorf("Expected default capacity >= 256, got %d", cap(b.buf))
		}
	})
}

func TestReset(t *testing.T) {
	b := New(256)
	b.BeginObject()
	b.AddStringField("test", "value")
	b.EndObject()

	b.Reset()

	if len(b.Bytes()) != 0 {
		t.Errorf("Expected empty buffer after reset, got length %d", len(b.Bytes()))
	}
	if b.opened {
		t.Error("Expected opened=false after reset")
	}
	if !b.first {
		t.Error("Expected first=true after reset")
	}
}

func TestAddStringField(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		expected string
	}{
		{name: "simple string", key: "message", value: "hello world", expected: `{"message":"hello world"}`},
		{name: "empty string", key: "empty", value: "", expected: `{"empty":""}`},
		{name: "string with quotes", key: "quoted", value: `she said "hello"`, expected: `{"quoted":"she said \"hello\""}`},
		{name: "string with backslash", key: "path", value: `C:\Users\Test`, expected: `{"path":"C:\\Users\\Test"}`},
		{name: "string with newline", key: "multiline", value: "line1\nline2", expected: `{"multiline":"line1\nline2"}`},
		{name: "control character", key: "ctl", value: "a\x01b", expected: `{"ctl":"a\u0001b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(256)
			b.BeginObject()
			b.AddStringField(tt.key, tt.value)
			b.EndObject()

			if got := string(b.Bytes()); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
			var parsed map[string]interface{}
			if err := json.Unmarshal(b.Bytes(), &parsed); err != nil {
				t.Errorf("Generated invalid JSON: %v", err)
			}
		})
	}
}

func TestAddInt64Field(t *testing.T) {
	tests := []struct {
		name     string
		value    int64
		expected string
	}{
		{"zero", 0, `{"n":0}`},
		{"positive", 1700000000123, `{"n":1700000000123}`},
		{"negative", -42, `{"n":-42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(64)
			b.BeginObject()
			b.AddInt64Field("n", tt.value)
			b.EndObject()
			if got := string(b.Bytes()); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestAddBoolField(t *testing.T) {
	b := New(64)
	b.BeginObject()
	b.AddBoolField("yes", true)
	b.AddBoolField("no", false)
	b.EndObject()

	if got := string(b.Bytes()); got != `{"yes":true,"no":false}` {
		t.Errorf("unexpected output %s", got)
	}
}

func TestAddBase64Field(t *testing.T) {
	data := []byte{0x00, 0xff, 'h', 'i'}

	b := New(64)
	b.BeginObject()
	b.AddBase64Field("payload", data)
	b.EndObject()

	// encoding/json decodes base64 strings into []byte
	var parsed struct {
		Payload []byte `json:"payload"`
	}
	if err := json.Unmarshal(b.Bytes(), &parsed); err != nil {
		t.Fatalf("Generated invalid JSON: %v", err)
	}
	if string(parsed.Payload) != string(data) {
		t.Errorf("payload round trip mismatch: %v", parsed.Payload)
	}
}

func TestCopySurvivesReset(t *testing.T) {
	b := New(32)
	b.AddInt64Field("sequence", 7)
	b.EndObject()
	kept := b.Copy()

	b.Reset()
	b.AddInt64Field("sequence", 8)
	b.EndObject()

	if got := string(kept); got != `{"sequence":7}` {
		t.Errorf("copy changed after reset: %s", got)
	}
	if b.Len() != len(`{"sequence":8}`) {
		t.Errorf("unexpected length %d", b.Len())
	}
}

func TestImplicitObject(t *testing.T) {
	// Adding a field without BeginObject opens the object.
	b := New(64)
	b.AddInt64Field("a", 1)
	b.AddBoolField("b", false)
	b.EndObject()

	if got := string(b.Bytes()); got != `{"a":1,"b":false}` {
		t.Errorf("unexpected output %s", got)
	}
}

func BenchmarkBuilder(b *testing.B) {
	payload := make([]byte, 2048)
	builder := New(4096)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		builder.Reset()
		builder.BeginObject()
		builder.AddStringField("partition_hint", "ticker-42")
		builder.AddInt64Field("timestamp", 1700000000000)
		builder.AddInt64Field("sequence", 7)
		builder.AddBoolField("ack", true)
		builder.AddInt64Field("source_id", 9001)
		builder.AddBase64Field("payload", payload)
		builder.EndObject()
	}
}
