package envelope

import (
	"errors"
	"fmt"
)

// Sentinel errors for the frame-level failure kinds named in §7.
var (
	ErrInvalidLength       = errors.New("envelope: meta_len exceeds buffer length")
	ErrMetaDecode          = errors.New("envelope: meta decode failed")
	ErrPayloadDecode       = errors.New("envelope: payload decode failed")
	ErrTruncatedAttachment = errors.New("envelope: truncated attachment")
)

// IndexOutOfRangeError is returned by the part-introspection helpers when
// the requested index is beyond the split part list.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("envelope: index %d out of range (have %d parts)", e.Index, e.Len)
}

// TooFewPartsError is returned when an address has fewer dotted segments
// than an introspection operation requires.
type TooFewPartsError struct {
	Have int
	Need int
}

func (e *TooFewPartsError) Error() string {
	return fmt.Sprintf("envelope: need at least %d parts, have %d", e.Need, e.Have)
}

// ErrNotComponentSource is returned by the source_cmp_* helpers when
// route.source is not a Component participator.
var ErrNotComponentSource = errors.New("envelope: route source is not a Component")
