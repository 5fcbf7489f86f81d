package index

import "testing"

// TestVarintRoundTrip checks that every value PutVarint writes, GetVarint
// reads back exactly, across the byte-width boundaries of the encoding.
func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 127, 128, 129, 16383, 16384, 16385,
		1 << 20, 1<<21 - 1, 1 << 21, 1<<28 - 1, 1 << 28,
		1 << 35, 1 << 42, 1 << 49, 1 << 55, 1<<56 - 1, 1 << 56,
		1<<63 - 1, 1 << 63, ^uint64(0),
	}
	for _, v := range values {
		buf := make([]byte, VarintLen(v))
		n := PutVarint(buf, v)
		if n != len(buf) {
			t.Fatalf("PutVarint(%d): wrote %d bytes, VarintLen said %d", v, n, len(buf))
		}
		got, consumed := GetVarint(buf)
		if got != v {
			t.Fatalf("GetVarint round trip for %d produced %d", v, got)
		}
		if consumed != n {
			t.Fatalf("GetVarint(%d) consumed %d bytes, want %d", v, consumed, n)
		}
	}
}

// TestVarintLenMatchesEncoding asserts VarintLen never under- or
// over-predicts the bytes PutVarint actually emits.
func TestVarintLenMatchesEncoding(t *testing.T) {
	for shift := 0; shift <= 63; shift++ {
		v := uint64(1) << uint(shift)
		buf := make([]byte, 9)
		n := PutVarint(buf, v)
		if n != VarintLen(v) {
			t.Fatalf("VarintLen(1<<%d)=%d but PutVarint wrote %d", shift, VarintLen(v), n)
		}
	}
}

// TestVarintTrailingBytesIgnored verifies GetVarint stops at the first byte
// without a continuation bit and does not read past it, so callers can
// decode back-to-back varints from a shared buffer.
func TestVarintTrailingBytesIgnored(t *testing.T) {
	buf := make([]byte, 0, 16)
	buf = append(buf, 0) // single zero byte (value 0)
	second := make([]byte, VarintLen(300))
	PutVarint(second, 300)
	buf = append(buf, second...)

	v1, n1 := GetVarint(buf)
	if v1 != 0 || n1 != 1 {
		t.Fatalf("first varint: got (%d, %d), want (0, 1)", v1, n1)
	}
	v2, n2 := GetVarint(buf[n1:])
	if v2 != 300 || n2 != len(second) {
		t.Fatalf("second varint: got (%d, %d), want (300, %d)", v2, n2, len(second))
	}
}

// TestFixed4RoundTrip checks that PutFixed4/GetFixed4 reproduce the value
// and that naturalLen matches the length a plain varint would have used.
func TestFixed4RoundTrip(t *testing.T) {
	cases := []struct {
		v          int
		naturalLen int
	}{
		{0, 1}, {1, 1}, {127, 1},
		{128, 2}, {16383, 2},
		{16384, 3}, {0x1fffff, 3},
		{0x200000, 4}, {0xfffffff, 4},
	}
	for _, c := range cases {
		buf := make([]byte, fixed4Width)
		PutFixed4(buf, c.v)
		gotV, gotLen := GetFixed4(buf)
		if gotV != c.v {
			t.Fatalf("GetFixed4 value: got %d, want %d", gotV, c.v)
		}
		if gotLen != c.naturalLen {
			t.Fatalf("GetFixed4(%d) naturalLen: got %d, want %d", c.v, gotLen, c.naturalLen)
		}
	}
}

// TestFixed4TrailingBytesFormAPlainVarint confirms the property Hash.Iterate
// relies on: the last naturalLen bytes of a fixed-4 field, read on their
// own, decode as a plain varint to the same value the fixed field holds.
func TestFixed4TrailingBytesFormAPlainVarint(t *testing.T) {
	for _, v := range []int{0, 1, 5, 127, 128, 200, 16383, 16384, 99999} {
		buf := make([]byte, fixed4Width)
		PutFixed4(buf, v)
		_, naturalLen := GetFixed4(buf)

		got, consumed := GetVarint(buf[fixed4Width-naturalLen:])
		if int(got) != v {
			t.Fatalf("trailing %d bytes of fixed4(%d) decoded as plain varint to %d", naturalLen, v, got)
		}
		if consumed != naturalLen {
			t.Fatalf("trailing bytes of fixed4(%d) consumed %d, want %d", v, consumed, naturalLen)
		}
	}
}
