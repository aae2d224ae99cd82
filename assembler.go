package apng

import (
	"bytes"

	"github.com/pkg/errors"
)

// maxFrameCount is the default ceiling on acTL.NumFrames; lifted by
// Options.UnlimitedFrameCount.
const maxFrameCount = 1024

// ResetPoint is the reader offset + expected sequence number captured
// immediately after frame 0 renders during construction, used by
// Decoder.Reset to rewind cheaply.
type ResetPoint struct {
	Offset      int64
	ExpectedSeq uint32
}

// assembly holds everything the Frame Assembler produces and the
// running state it needs to keep assembling frames lazily on demand.
type assembly struct {
	walker *Walker
	opts   Options

	ihdr IHDR
	actl ACTL

	frames           []*Frame
	assembled        int // frames[0:assembled] are populated
	defaultImageRefs []ChunkRef
	defaultImageData [][]byte
	sharedPrefix     []byte
	expectedSeq      uint32
	multipleACTL     bool
	resetPoint       ResetPoint
	firstPassDone    bool
}

// newAssembly runs Frame Assembler construction steps 1–7 (§4.D):
// signature, IHDR, shared prefix up to acTL, frame-count validation,
// and extraction of frame 0's data chunks. It does not render frame 0;
// the Decoder Orchestrator does that (step 8) so the Compositor stays
// a separate, independently testable component.
func newAssembly(r Reader, opts Options) (*assembly, error) {
	sig, err := r.Read(8)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, errors.WithStack(FormatError("bad PNG signature"))
	}

	w := NewWalker(r)
	a := &assembly{walker: w, opts: opts}

	ihdrResult, err := w.Peek(opts.SkipChecksumVerify, func(h ChunkHeader) Action {
		return ActionReadTyped
	})
	if err != nil {
		return nil, err
	}
	if ihdrResult.Header.Name != ihdrChunk {
		return nil, errors.WithStack(FormatError("expected IHDR as first chunk"))
	}
	a.ihdr, err = decodeIHDR(ihdrResult.Payload)
	if err != nil {
		return nil, err
	}

	var preACTLFrame0 *FCTL
	var sharedPrefix bytes.Buffer
	for {
		result, err := w.Peek(opts.SkipChecksumVerify, func(h ChunkHeader) Action {
			switch h.Name {
			case idatChunk:
				return ActionReset
			default:
				return ActionReadTyped
			}
		})
		if err != nil {
			return nil, err
		}
		if result.Rewound {
			return nil, errors.WithStack(&LackOfChunkError{Chunk: "acTL"})
		}
		switch result.Header.Name {
		case actlChunk:
			a.actl, err = decodeACTL(result.Payload)
			if err != nil {
				return nil, err
			}
		case fctlChunk:
			// The spec explicitly permits fcTL before acTL: remember it
			// as the candidate first-frame control (§4.D step 3).
			fc, err := decodeFCTL(result.Payload)
			if err != nil {
				return nil, err
			}
			if err := a.checkSequence(fc.SequenceNumber); err != nil {
				return nil, err
			}
			preACTLFrame0 = &fc
		default:
			sharedPrefix.Write(result.Raw)
		}
		if result.Header.Name == actlChunk {
			break
		}
	}
	a.sharedPrefix = sharedPrefix.Bytes()

	if a.actl.NumFrames == 0 || (a.actl.NumFrames >= maxFrameCount && !opts.UnlimitedFrameCount) {
		return nil, errors.WithStack(&InvalidFrameCountError{Value: a.actl.NumFrames})
	}
	a.frames = make([]*Frame, a.actl.NumFrames)

	if err := a.extractFrameZero(preACTLFrame0); err != nil {
		return nil, err
	}

	if a.assembled == len(a.frames) {
		if err := a.verifyTrailingIEND(); err != nil {
			return nil, err
		}
		a.firstPassDone = true
	}

	return a, nil
}

// extractFrameZero implements §4.D step 7: peek the next significant
// chunk after acTL and decide between form A (a fresh post-acTL fcTL
// with sequence 0, whose fdAT list is both frame 0 and the default
// image), form A-via-candidate (a pre-acTL fcTL candidate plus an
// IDAT list that becomes frame 0's payload), form B (an IDAT list
// that is default-image-only, followed by its own fcTL+fdAT group for
// frame 0), and the defensive second-acTL case.
func (a *assembly) extractFrameZero(preACTLFrame0 *FCTL) error {
	for a.frames[0] == nil {
		result, err := a.walker.Peek(a.opts.SkipChecksumVerify, func(h ChunkHeader) Action {
			switch h.Name {
			case fctlChunk, idatChunk, actlChunk:
				return ActionReadTyped
			default:
				return ActionReadUnknown
			}
		})
		if err != nil {
			return err
		}

		switch result.Header.Name {
		case actlChunk:
			a.multipleACTL = true

		case fctlChunk:
			fc, err := decodeFCTL(result.Payload)
			if err != nil {
				return err
			}
			if err := a.checkSequence(fc.SequenceNumber); err != nil {
				return err
			}
			refs, eager, err := a.collectFrameData(fdatChunk)
			if err != nil {
				return err
			}
			if len(refs) == 0 && len(eager) == 0 {
				return errors.WithStack(&FrameDataNotFoundError{ExpectedSequence: a.expectedSeq})
			}
			a.frames[0] = &Frame{Control: fc, refs: refs, eager: eager}
			a.assembled = 1
			a.defaultImageRefs = refs
			a.defaultImageData = eager

		case idatChunk:
			refs, eager, err := a.collectIDATStartingWith(result)
			if err != nil {
				return err
			}
			if len(refs) == 0 && len(eager) == 0 {
				return errors.WithStack(&ImageDataNotFoundError{})
			}
			a.defaultImageRefs = refs
			a.defaultImageData = eager

			if preACTLFrame0 != nil {
				a.frames[0] = &Frame{Control: *preACTLFrame0, refs: refs, eager: eager}
				a.assembled = 1
				continue
			}

			fcResult, err := a.walker.Peek(a.opts.SkipChecksumVerify, func(h ChunkHeader) Action {
				return ActionReadTyped
			})
			if err != nil {
				return err
			}
			if fcResult.Header.Name != fctlChunk {
				return errors.WithStack(FormatError("expected fcTL after default image"))
			}
			fc, err := decodeFCTL(fcResult.Payload)
			if err != nil {
				return err
			}
			if err := a.checkSequence(fc.SequenceNumber); err != nil {
				return err
			}
			fdRefs, fdEager, err := a.collectFrameData(fdatChunk)
			if err != nil {
				return err
			}
			if len(fdRefs) == 0 && len(fdEager) == 0 {
				return errors.WithStack(&FrameDataNotFoundError{ExpectedSequence: a.expectedSeq})
			}
			a.frames[0] = &Frame{Control: fc, refs: fdRefs, eager: fdEager}
			a.assembled = 1
		}
	}
	if a.multipleACTL {
		return errors.WithStack(&MultipleAnimationControlError{})
	}
	return nil
}

// collectIDATStartingWith gathers the IDAT already peeked in result
// plus any further consecutive IDAT chunks.
func (a *assembly) collectIDATStartingWith(result PeekResult) ([]ChunkRef, [][]byte, error) {
	var refs []ChunkRef
	var eager [][]byte
	if a.opts.LoadFrameData {
		eager = append(eager, result.Payload)
	} else {
		refs = append(refs, ChunkRef{Offset: result.Header.Offset + 8, Length: result.Header.Length})
	}
	moreRefs, moreEager, err := a.collectFrameData(idatChunk)
	if err != nil {
		return nil, nil, err
	}
	refs = append(refs, moreRefs...)
	eager = append(eager, moreEager...)
	return refs, eager, nil
}

// collectFrameData consumes consecutive chunks of the given kind
// (fdAT for animation frames, IDAT for the default image) from the
// current reader position into an ordered list, per §4.D "Per-frame
// payload collection". Termination: the first chunk of any other kind
// (normally fcTL, acTL or IEND) is peeked, then the walker rewinds so
// the terminator remains pending.
func (a *assembly) collectFrameData(kind ChunkName) ([]ChunkRef, [][]byte, error) {
	var refs []ChunkRef
	var eager [][]byte
	for {
		var got ChunkName
		action := func() Action {
			if a.opts.LoadFrameData {
				return ActionReadTyped
			}
			if kind == fdatChunk {
				return ActionReadIndexedFdAT
			}
			return ActionReadIndexedIDAT
		}()

		result, err := a.walker.Peek(a.opts.SkipChecksumVerify, func(h ChunkHeader) Action {
			got = h.Name
			if h.Name != kind {
				return ActionReset
			}
			return action
		})
		if err != nil {
			return nil, nil, err
		}
		if got != kind {
			break
		}

		switch kind {
		case fdatChunk:
			if a.opts.LoadFrameData {
				seq, data, err := decodeFDAT(result.Payload)
				if err != nil {
					return nil, nil, err
				}
				if err := a.checkSequence(seq); err != nil {
					return nil, nil, err
				}
				eager = append(eager, data)
			} else {
				if err := a.checkSequence(result.Sequence); err != nil {
					return nil, nil, err
				}
				refs = append(refs, result.Ref)
			}
		case idatChunk:
			if a.opts.LoadFrameData {
				eager = append(eager, result.Payload)
			} else {
				refs = append(refs, result.Ref)
			}
		}
	}
	return refs, eager, nil
}

// checkSequence enforces invariant 1: fcTL/fdAT sequence numbers form
// the strictly increasing series 0, 1, 2, ... with no gaps.
func (a *assembly) checkSequence(got uint32) error {
	if got != a.expectedSeq {
		return errors.WithStack(&SequenceError{Expected: a.expectedSeq, Got: got})
	}
	a.expectedSeq++
	return nil
}

// continueNext assembles frames[a.assembled] (a.assembled must be <
// len(frames)). It is used both by Decoder.RenderNextSync's lazy path and
// by full-first-pass construction.
func (a *assembly) continueNext() (*Frame, error) {
	index := a.assembled
	fcResult, err := a.walker.Peek(a.opts.SkipChecksumVerify, func(h ChunkHeader) Action {
		return ActionReadTyped
	})
	if err != nil {
		return nil, err
	}
	if fcResult.Header.Name == actlChunk {
		return nil, errors.WithStack(&MultipleAnimationControlError{})
	}
	if fcResult.Header.Name != fctlChunk {
		return nil, errors.WithStack(FormatError("expected fcTL"))
	}
	fc, err := decodeFCTL(fcResult.Payload)
	if err != nil {
		return nil, err
	}
	if err := a.checkSequence(fc.SequenceNumber); err != nil {
		return nil, err
	}
	refs, eager, err := a.collectFrameData(fdatChunk)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 && len(eager) == 0 {
		return nil, errors.WithStack(&FrameDataNotFoundError{ExpectedSequence: a.expectedSeq})
	}
	frame := &Frame{Control: fc, refs: refs, eager: eager}
	a.frames[index] = frame
	a.assembled++

	if a.assembled == len(a.frames) {
		if err := a.verifyTrailingIEND(); err != nil {
			return nil, err
		}
		a.firstPassDone = true
	}
	return frame, nil
}

// verifyTrailingIEND peeks the final chunk and confirms it is IEND.
func (a *assembly) verifyTrailingIEND() error {
	result, err := a.walker.Peek(a.opts.SkipChecksumVerify, func(h ChunkHeader) Action {
		return ActionReadUnknown
	})
	if err != nil {
		return err
	}
	if result.Header.Name != iendChunk {
		return errors.WithStack(&LackOfChunkError{Chunk: "IEND"})
	}
	return nil
}
