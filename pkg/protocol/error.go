package protocol

// ErrorCode classifies a fatal protocol error.
type ErrorCode uint16

const (
	ErrCodeBadFrame ErrorCode = 0x01 // Frame could not be decoded
	ErrCodeVersion  ErrorCode = 0x02 // Unsupported protocol version
	ErrCodeInternal ErrorCode = 0x03 // Server-side failure
	ErrCodeBusy     ErrorCode = 0x04 // Session limit reached
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeBadFrame:
		return "BadFrame"
	case ErrCodeVersion:
		return "Version"
	case ErrCodeInternal:
		return "Internal"
	case ErrCodeBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// ErrorFrame reports a fatal error before the connection closes.
type ErrorFrame struct {
	Code    ErrorCode
	Message string
}

// EncodeError encodes an error payload to bytes.
func EncodeError(ef *ErrorFrame) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(ef.Code))
	e.WriteString(ef.Message)
	return e.Bytes()
}

// DecodeError decodes an error payload from bytes.
func DecodeError(data []byte) (*ErrorFrame, error) {
	d := NewDecoder(data)

	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	msg, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	return &ErrorFrame{Code: ErrorCode(code), Message: msg}, nil
}
