package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestFrameTypeString(t *testing.T) {
	tests := []struct {
		ft   FrameType
		want string
	}{
		{FrameHello, "Hello"},
		{FrameHeadOps, "HeadOps"},
		{FrameAck, "Ack"},
		{FrameError, "Error"},
		{FrameType(0x7F), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.want {
			t.Errorf("FrameType(%d).String() = %q, want %q", tt.ft, got, tt.want)
		}
	}
}

func TestFrameFlagsHas(t *testing.T) {
	var ff FrameFlags
	if ff.Has(FlagResync) {
		t.Error("zero flags report Resync")
	}
	ff = FlagResync
	if !ff.Has(FlagResync) {
		t.Error("FlagResync not detected")
	}
}

func TestFrameEncode(t *testing.T) {
	f := NewFrameWithFlags(FrameHeadOps, FlagResync, []byte("abc"))
	got := f.Encode()
	want := []byte{0x01, 0x01, 0x00, 0x03, 'a', 'b', 'c'}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = %x, want %x", got, want)
	}
}

func TestFrameDecode(t *testing.T) {
	data := []byte{0x01, 0x01, 0x00, 0x03, 'a', 'b', 'c'}
	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if f.Type != FrameHeadOps {
		t.Errorf("Type = %v, want HeadOps", f.Type)
	}
	if !f.Flags.Has(FlagResync) {
		t.Error("FlagResync lost")
	}
	if string(f.Payload) != "abc" {
		t.Errorf("Payload = %q, want abc", f.Payload)
	}
}

func TestFrameDecodePayloadIsCopy(t *testing.T) {
	data := []byte{0x02, 0x00, 0x00, 0x01, 'x'}
	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	data[4] = 'y'
	if string(f.Payload) != "x" {
		t.Error("decoded payload aliases the input buffer")
	}
}

func TestFrameDecodeTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{0x01, 0x00}},
		{"short payload", []byte{0x01, 0x00, 0x00, 0x05, 'a'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); err != io.ErrUnexpectedEOF {
				t.Errorf("DecodeFrame() error = %v, want ErrUnexpectedEOF", err)
			}
		})
	}
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer

	out := NewFrame(FrameAck, []byte{0x2A})
	if err := WriteFrame(&buf, out); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	in, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if in.Type != FrameAck || !bytes.Equal(in.Payload, []byte{0x2A}) {
		t.Errorf("round trip = %+v", in)
	}
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, NewFrame(FrameHello, nil)); err != nil {
		t.Fatal(err)
	}
	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(f.Payload) != 0 {
		t.Errorf("Payload = %x, want empty", f.Payload)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	f := NewFrame(FrameHeadOps, make([]byte, MaxPayloadSize+1))
	if err := WriteFrame(io.Discard, f); err != ErrFrameTooLarge {
		t.Errorf("WriteFrame() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestReadFrameShortStream(t *testing.T) {
	r := bytes.NewReader([]byte{0x01, 0x00, 0x00, 0x08, 'a', 'b'})
	if _, err := ReadFrame(r); err == nil {
		t.Error("ReadFrame() accepted a truncated stream")
	}
}
