package shm

// Request types for the single in-flight request record.
const (
	ReqEmpty uint32 = iota
	ReqGetFrame
	ReqGetParity
)

// Parity response sentinels. A real response encodes the
// frame number in the low 31 bits with the parity bit in the sign bit, so
// in principle every uint32 value is a valid encoding for some (n, parity)
// pair. EMPTY and WAITING are reserved at the top of the range rather than
// at 0: frame number 0 with parity false legitimately encodes to 0, and a
// sentinel there would make that one frame's parity response
// indistinguishable from "not computed yet".
const (
	ParityResponseEmpty      uint32 = 0xffffffff
	ParityWaitingForResponse uint32 = 0xfffffffe
	parityBitMask            uint32 = 0x80000000
	parityFrameNumberMask    uint32 = 0x7fffffff
)

// EncodeParity packs a frame number and its parity bit into one response
// word.
func EncodeParity(n int, parity bool) uint32 {
	v := uint32(n) & parityFrameNumberMask
	if parity {
		v |= parityBitMask
	}
	return v
}

// DecodeParity unpacks a parity response word into its frame number and
// parity bit.
func DecodeParity(word uint32) (n int, parity bool) {
	return int(word & parityFrameNumberMask), word&parityBitMask != 0
}
