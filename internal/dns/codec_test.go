package dns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	cases := []Name{
		Root,
		NewName("com"),
		NewName("Example.com"),
		NewName("www.example.com"),
	}
	for _, n := range cases {
		wire, err := EncodeName(n)
		require.NoError(t, err)
		off := 0
		got, err := DecodeName(wire, &off)
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, len(wire), off)
	}
}

func TestEncodeNamePreservesCase(t *testing.T) {
	wire, err := EncodeName(NewName("Example.COM"))
	require.NoError(t, err)
	off := 0
	got, err := DecodeName(wire, &off)
	require.NoError(t, err)
	assert.Equal(t, Name("Example.COM."), got)
}

func TestEncodeNameRejectsEmptyLabel(t *testing.T) {
	_, err := EncodeName(Name("www..com."))
	assert.Error(t, err)
}

func TestEncodeNameRejectsOverlongLabel(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	_, err := EncodeName(Name(string(long) + ".com."))
	assert.Error(t, err)
}

func TestDecodeNameFollowsCompressionPointer(t *testing.T) {
	// "example.com" at offset 0, then a pointer to it at offset 13.
	msg := []byte{
		7, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		3, 'c', 'o', 'm',
		0,
		0xC0, 0x00,
	}
	off := 13
	got, err := DecodeName(msg, &off)
	require.NoError(t, err)
	assert.Equal(t, Name("example.com."), got)
	assert.Equal(t, 15, off)
}

func TestDecodeNameDetectsCompressionLoop(t *testing.T) {
	msg := []byte{0xC0, 0x00} // points to itself
	off := 0
	_, err := DecodeName(msg, &off)
	assert.Error(t, err)
}

func TestDecodeNameRejectsReservedLabelBits(t *testing.T) {
	msg := []byte{0x40, 0x00}
	off := 0
	_, err := DecodeName(msg, &off)
	assert.Error(t, err)
}

func TestDecodeNameUnexpectedEOF(t *testing.T) {
	msg := []byte{5, 'a', 'b'}
	off := 0
	_, err := DecodeName(msg, &off)
	assert.Error(t, err)
}
