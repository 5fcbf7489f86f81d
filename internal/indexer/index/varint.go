package index

// PutVarint writes v into dst using the same variable-length, continuation-bit
// encoding used throughout the segment file format: 7 payload bits per byte,
// high bit set on every byte but the last, big-endian group order, with a
// 9-byte escape for values that need the full 64 bits. It returns the number
// of bytes written. dst must have at least VarintLen(v) bytes of room.
func PutVarint(dst []byte, v uint64) int {
	if v&0xff00000000000000 != 0 {
		dst[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			dst[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return 9
	}

	var buf [9]byte
	n := 0
	for {
		buf[n] = byte(v&0x7f) | 0x80
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	buf[0] &^= 0x80
	for i, j := 0, n-1; j >= 0; j, i = j-1, i+1 {
		dst[i] = buf[j]
	}
	return n
}

// VarintLen returns the number of bytes PutVarint would write for v.
func VarintLen(v uint64) int {
	if v&0xff00000000000000 != 0 {
		return 9
	}
	n := 1
	for v > 0x7f {
		v >>= 7
		n++
	}
	return n
}

// GetVarint decodes a varint from the front of src, returning its value and
// the number of bytes consumed.
func GetVarint(src []byte) (uint64, int) {
	var v uint64
	i := 0
	for ; i < 8 && i < len(src); i++ {
		b := src[i]
		v = (v << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1
		}
	}
	if i < len(src) {
		v = (v << 8) | uint64(src[i])
		return v, i + 1
	}
	return v, i
}

// PutFixed4 writes v as an always-4-byte padded varint: the first three bytes
// carry the high continuation bit and the last does not, so the field occupies
// exactly 4 bytes regardless of v's magnitude. This lets the field be
// reserved before v is known and overwritten later without shifting any
// byte that follows it in the buffer.
func PutFixed4(dst []byte, v int) {
	dst[0] = 0x80 | byte(v>>21)
	dst[1] = 0x80 | byte(v>>14)
	dst[2] = 0x80 | byte(v>>7)
	dst[3] = byte(v) & 0x7f
}

// GetFixed4 decodes a 4-byte fixed-width varint written by PutFixed4 and also
// returns the length, in 1..4 bytes, that a plain PutVarint encoding of the
// same value would have occupied. Scanners use the second value to recover
// the position a generic-varint decode would have stopped at, since the
// fixed form pads short values with continuation bits a generic decoder
// would otherwise keep consuming.
func GetFixed4(src []byte) (value int, naturalLen int) {
	v := (int(src[0]&0x7f) << 21) | (int(src[1]&0x7f) << 14) | (int(src[2]&0x7f) << 7) | int(src[3])
	switch {
	case v&^0x7f == 0:
		naturalLen = 1
	case v&^0x3fff == 0:
		naturalLen = 2
	case v&^0x1fffff == 0:
		naturalLen = 3
	default:
		naturalLen = 4
	}
	return v, naturalLen
}

// fixed4Width is the on-disk size of a back-patched poslist-size field.
const fixed4Width = 4
