package apng

import "sync/atomic"

// owner is a CAS-guarded exclusive claim: at most one View may hold a
// given Image at a time, since the Image's Decoder and Compositor are
// not safe for concurrent playback from two owners. A claim is a
// pointer identity, not a count, so releasing an owner that never held
// the claim is a silent no-op rather than corrupting another holder's
// claim.
type owner struct {
	holder atomic.Pointer[int]
}

// Claim attempts to take exclusive ownership on behalf of token,
// reporting whether it succeeded. token should be a stable, unique
// pointer identifying the caller (a View passes &v.token).
func (o *owner) Claim(token *int) bool {
	return o.holder.CompareAndSwap(nil, token)
}

// Release gives up ownership, but only if token is the current holder;
// otherwise it is a no-op.
func (o *owner) Release(token *int) {
	o.holder.CompareAndSwap(token, nil)
}

// Owned reports whether any View currently holds the claim.
func (o *owner) Owned() bool {
	return o.holder.Load() != nil
}

// Image is a decoded APNG paired with the exclusive-ownership claim
// that lets at most one View drive its Decoder at a time, per the
// cyclic-ownership design note: a View owns an Image, and an Image
// tracks (without owning) the single View currently entitled to render
// it.
type Image struct {
	Decoder *Decoder
	claim   owner
}

// NewImage wraps a constructed Decoder as a claimable Image.
func NewImage(d *Decoder) *Image {
	return &Image{Decoder: d}
}

// View is a single consumer of an Image's frames; it must successfully
// Claim the Image before driving its Decoder.
type View struct {
	token int
	image *Image
}

// NewView creates an unattached View.
func NewView() *View { return &View{} }

// Attach claims image exclusively for v, releasing any image v
// previously held. It reports false if image is already claimed by
// another View.
func (v *View) Attach(image *Image) bool {
	if v.image == image {
		return true
	}
	if !image.claim.Claim(&v.token) {
		return false
	}
	if v.image != nil && v.image != image {
		v.image.claim.Release(&v.token)
	}
	v.image = image
	return true
}

// Detach releases v's claim, if any, leaving v unattached.
func (v *View) Detach() {
	if v.image == nil {
		return
	}
	v.image.claim.Release(&v.token)
	v.image = nil
}
