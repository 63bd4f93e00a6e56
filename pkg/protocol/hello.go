package protocol

import "fmt"

// Version is the protocol version this package speaks. A server rejects
// hellos carrying any other version.
const Version = 1

// Hello is the first frame a client sends on a new connection.
type Hello struct {
	// Version is the client's protocol version.
	Version uint8

	// SessionID is the session to resume, or empty to start fresh. The
	// server always answers with a full resync either way; the ID only
	// controls which registry the session binds to.
	SessionID string
}

// EncodeHello encodes a hello payload to bytes.
func EncodeHello(h *Hello) []byte {
	e := NewEncoder()
	e.WriteByte(h.Version)
	e.WriteString(h.SessionID)
	return e.Bytes()
}

// DecodeHello decodes a hello payload from bytes.
func DecodeHello(data []byte) (*Hello, error) {
	d := NewDecoder(data)

	version, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sessionID, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &Hello{Version: version, SessionID: sessionID}, nil
}

// CheckVersion returns an error when the hello's version is unsupported.
func (h *Hello) CheckVersion() error {
	if h.Version != Version {
		return fmt.Errorf("protocol: unsupported version %d (want %d)", h.Version, Version)
	}
	return nil
}
