package apng

import (
	"github.com/pkg/errors"
)

// Action is the caller's decision at a peeked chunk header.
type Action int

const (
	// ActionReadTyped consumes the chunk fully and returns its
	// verified payload for the caller to decode as a named type.
	ActionReadTyped Action = iota
	// ActionReadIndexedIDAT consumes the chunk (verifying its CRC
	// unless skipped) but returns only a reference to its payload
	// rather than retaining the bytes.
	ActionReadIndexedIDAT
	// ActionReadIndexedFdAT behaves like ActionReadIndexedIDAT but
	// additionally strips the leading 4-byte sequence number that fdAT
	// payloads carry and reports it in PeekResult.Sequence; the walker
	// does not check it against the expected series.
	ActionReadIndexedFdAT
	// ActionReadUnknown consumes and discards the chunk.
	ActionReadUnknown
	// ActionReset rewinds the cursor to just before the chunk header;
	// the header remains unconsumed for the next Peek.
	ActionReset
)

// ChunkHeader is the length+name pair read by a peek, together with
// the absolute offset of the header itself (so ActionReset can rewind
// to it).
type ChunkHeader struct {
	Name   ChunkName
	Length uint32
	Offset int64
}

// PeekResult is what Peek returns once the caller's Action has been
// carried out.
type PeekResult struct {
	Header ChunkHeader

	// Payload is populated for ActionReadTyped (full, CRC-verified
	// chunk payload) and, for ActionReadIndexedFdAT, holds nothing —
	// see Ref and Sequence instead.
	Payload []byte

	// Raw is populated for ActionReadTyped: the complete re-encoded
	// chunk (length+name+payload+freshly-stamped CRC), used verbatim
	// by the Frame Assembler to build shared_prefix_bytes. The CRC is
	// re-stamped rather than copied from the stream so a
	// skip-checksum-verify pass that tolerates a corrupted CRC still
	// emits a chunk the host PNG decoder will accept.
	Raw []byte

	// Ref is populated for ActionReadIndexedIDAT/ActionReadIndexedFdAT:
	// it points at the chunk's data bytes (past any leading sequence
	// number) without retaining them.
	Ref ChunkRef

	// Sequence is populated for ActionReadIndexedFdAT (and, via the
	// caller decoding Payload itself, implicitly available for a typed
	// fcTL/fdAT read).
	Sequence uint32

	// Rewound reports whether ActionReset fired; the header chunk is
	// still pending on the Reader.
	Rewound bool
}

// Walker is the Stream Walker: a single peek-then-decide primitive
// driving Reader.
type Walker struct {
	r Reader
}

// NewWalker wraps r for chunk-at-a-time traversal.
func NewWalker(r Reader) *Walker { return &Walker{r: r} }

// Peek inspects the upcoming chunk's name and length and invokes
// decide to obtain an Action; it then carries out exactly that Action.
func (w *Walker) Peek(skipCRC bool, decide func(ChunkHeader) Action) (PeekResult, error) {
	headerOffset := w.r.Offset()
	lenName, err := w.r.Read(8)
	if err != nil {
		return PeekResult{}, errors.WithStack(err)
	}
	h := ChunkHeader{
		Name:   ChunkName(lenName[4:8]),
		Length: be.Uint32(lenName[0:4]),
		Offset: headerOffset,
	}

	switch decide(h) {
	case ActionReset:
		if err := w.r.Seek(headerOffset); err != nil {
			return PeekResult{}, err
		}
		return PeekResult{Header: h, Rewound: true}, nil

	case ActionReadTyped:
		payload, err := w.readPayloadAndCRC(h, skipCRC)
		if err != nil {
			return PeekResult{}, err
		}
		return PeekResult{Header: h, Payload: payload, Raw: encodeChunk(h.Name, payload)}, nil

	case ActionReadIndexedIDAT:
		payload, err := w.readPayloadAndCRC(h, skipCRC)
		if err != nil {
			return PeekResult{}, err
		}
		_ = payload // verified (or skipped) and discarded; only the reference is kept
		return PeekResult{
			Header: h,
			Ref:    ChunkRef{Offset: h.Offset + 8, Length: h.Length},
		}, nil

	case ActionReadIndexedFdAT:
		payload, err := w.readPayloadAndCRC(h, skipCRC)
		if err != nil {
			return PeekResult{}, err
		}
		seq, data, err := decodeFDAT(payload)
		if err != nil {
			return PeekResult{}, err
		}
		return PeekResult{
			Header:   h,
			Sequence: seq,
			Ref:      ChunkRef{Offset: h.Offset + 8 + 4, Length: uint32(len(data))},
		}, nil

	case ActionReadUnknown:
		if _, err := w.readPayloadAndCRC(h, true); err != nil {
			return PeekResult{}, err
		}
		return PeekResult{Header: h}, nil

	default:
		return PeekResult{}, errors.Errorf("apng: unknown walker action %d", decide(h))
	}
}

// readPayloadAndCRC reads h.Length payload bytes plus the trailing
// 4-byte CRC, verifying it unless skipCRC is set.
func (w *Walker) readPayloadAndCRC(h ChunkHeader, skipCRC bool) ([]byte, error) {
	payload, err := w.r.Read(int(h.Length))
	if err != nil {
		return nil, err
	}
	crcBytes, err := w.r.Read(4)
	if err != nil {
		return nil, err
	}
	if !skipCRC {
		if err := verifyCRC(h.Name, payload, be.Uint32(crcBytes)); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
