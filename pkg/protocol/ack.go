package protocol

// Ack acknowledges the highest head frame sequence a client has applied.
// The server uses it to track mirror lag; it never retransmits, since a
// reconnect always starts with a full resync.
type Ack struct {
	Seq uint64
}

// EncodeAck encodes an ack payload to bytes.
func EncodeAck(a *Ack) []byte {
	e := NewEncoder()
	e.WriteUvarint(a.Seq)
	return e.Bytes()
}

// DecodeAck decodes an ack payload from bytes.
func DecodeAck(data []byte) (*Ack, error) {
	d := NewDecoder(data)
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &Ack{Seq: seq}, nil
}
