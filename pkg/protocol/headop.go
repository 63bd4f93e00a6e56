package protocol

import (
	"fmt"
	"sort"
)

// OpKind is the type of head operation.
type OpKind uint8

const (
	// OpHeadInsert appends one declaration's element to the head.
	OpHeadInsert OpKind = 0x01

	// OpHeadRemove detaches the element carrying the fingerprint.
	OpHeadRemove OpKind = 0x02

	// OpHeadReset clears every engine-managed element from the head. It
	// opens a resync batch.
	OpHeadReset OpKind = 0x03
)

// String returns the string representation of the operation kind.
func (k OpKind) String() string {
	switch k {
	case OpHeadInsert:
		return "Insert"
	case OpHeadRemove:
		return "Remove"
	case OpHeadReset:
		return "Reset"
	default:
		return "Unknown"
	}
}

// HeadOp is a single head mutation. Insert carries the full declaration;
// Remove carries only the fingerprint; Reset carries nothing.
type HeadOp struct {
	Kind        OpKind
	Fingerprint uint64
	Tag         string
	Attrs       map[string]string
	InnerHTML   *string
}

// HeadFrame is a sequenced batch of head operations, produced by one
// reconcile pass or one resync.
type HeadFrame struct {
	Seq uint64
	Ops []HeadOp
}

// EncodeHeadFrame encodes a head operation batch to bytes.
func EncodeHeadFrame(hf *HeadFrame) []byte {
	e := NewEncoder()
	EncodeHeadFrameTo(e, hf)
	return e.Bytes()
}

// EncodeHeadFrameTo encodes a head operation batch using the provided
// encoder.
func EncodeHeadFrameTo(e *Encoder, hf *HeadFrame) {
	e.WriteUvarint(hf.Seq)
	e.WriteUvarint(uint64(len(hf.Ops)))
	for i := range hf.Ops {
		encodeHeadOp(e, &hf.Ops[i])
	}
}

func encodeHeadOp(e *Encoder, op *HeadOp) {
	e.WriteByte(byte(op.Kind))

	switch op.Kind {
	case OpHeadInsert:
		e.WriteUint64(op.Fingerprint)
		e.WriteString(op.Tag)

		// Sorted attribute order keeps the encoding canonical: equal
		// operations always produce equal bytes.
		names := make([]string, 0, len(op.Attrs))
		for name := range op.Attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		e.WriteUvarint(uint64(len(names)))
		for _, name := range names {
			e.WriteString(name)
			e.WriteString(op.Attrs[name])
		}

		if op.InnerHTML != nil {
			e.WriteBool(true)
			e.WriteString(*op.InnerHTML)
		} else {
			e.WriteBool(false)
		}

	case OpHeadRemove:
		e.WriteUint64(op.Fingerprint)

	case OpHeadReset:
		// No payload.
	}
}

// DecodeHeadFrame decodes a head operation batch from bytes.
func DecodeHeadFrame(data []byte) (*HeadFrame, error) {
	d := NewDecoder(data)
	return DecodeHeadFrameFrom(d)
}

// DecodeHeadFrameFrom decodes a head operation batch using the provided
// decoder.
func DecodeHeadFrameFrom(d *Decoder) (*HeadFrame, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	hf := &HeadFrame{
		Seq: seq,
		Ops: make([]HeadOp, 0, count),
	}
	for i := 0; i < count; i++ {
		op, err := decodeHeadOp(d)
		if err != nil {
			return nil, fmt.Errorf("protocol: op %d: %w", i, err)
		}
		hf.Ops = append(hf.Ops, op)
	}
	return hf, nil
}

func decodeHeadOp(d *Decoder) (HeadOp, error) {
	var op HeadOp

	kind, err := d.ReadByte()
	if err != nil {
		return op, err
	}
	op.Kind = OpKind(kind)

	switch op.Kind {
	case OpHeadInsert:
		if op.Fingerprint, err = d.ReadUint64(); err != nil {
			return op, err
		}
		if op.Tag, err = d.ReadString(); err != nil {
			return op, err
		}

		count, err := d.ReadCollectionCount()
		if err != nil {
			return op, err
		}
		op.Attrs = make(map[string]string, count)
		for i := 0; i < count; i++ {
			name, err := d.ReadString()
			if err != nil {
				return op, err
			}
			value, err := d.ReadString()
			if err != nil {
				return op, err
			}
			op.Attrs[name] = value
		}

		hasBody, err := d.ReadBool()
		if err != nil {
			return op, err
		}
		if hasBody {
			body, err := d.ReadString()
			if err != nil {
				return op, err
			}
			op.InnerHTML = &body
		}
		return op, nil

	case OpHeadRemove:
		op.Fingerprint, err = d.ReadUint64()
		return op, err

	case OpHeadReset:
		return op, nil

	default:
		return op, fmt.Errorf("protocol: unknown head op kind 0x%02x", kind)
	}
}
