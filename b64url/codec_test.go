package b64url

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_LiteralVectors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ESM", Encode([]byte{0x11, 0x23}))
	assert.Equal(t, "HE3j", Encode([]byte{0x1c, 0x4d, 0xe3}))
	assert.Equal(t, "LqhVsL4", Encode([]byte{0x2e, 0xa8, 0x55, 0xb0, 0xbe}))
}

func TestDecode_LiteralVector(t *testing.T) {
	t.Parallel()

	got, err := Decode("DEZGb5gDRyzWvS4oDmEwX8F-h8Lcdo6fdBgzsI_9-No")
	require.NoError(t, err)

	want := []byte{
		0x0c, 0x46, 0x46, 0x6f, 0x98, 0x03, 0x47, 0x2c, 0xd6, 0xbd, 0x2e, 0x28,
		0x0e, 0x61, 0x30, 0x5f, 0xc1, 0x7e, 0x87, 0xc2, 0xdc, 0x76, 0x8e, 0x9f,
		0x74, 0x18, 0x33, 0xb0, 0x8f, 0xfd, 0xf8, 0xda,
	}
	assert.Equal(t, want, got)
}

func TestDecode_RejectsLengthMod4Of1(t *testing.T) {
	t.Parallel()

	_, err := Decode("A")
	assert.Error(t, err)
}

func TestDecode_RejectsNonAlphabet(t *testing.T) {
	t.Parallel()

	_, err := Decode("not valid!!")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	vectors := [][]byte{
		{},
		{0x00},
		{0xff, 0xee, 0xdd},
		[]byte("hello world, this is a round trip test vector"),
	}
	for _, v := range vectors {
		got, err := Decode(Encode(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
