package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChecksums(t *testing.T) {
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		t.Run(want, func(t *testing.T) {
			got, err := Normalize(strings.ToLower(want))
			require.NoError(t, err)
			assert.Equal(t, want, got)

			got, err = Normalize(want)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"0x123",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed00",
		"0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", // bad checksum
	} {
		_, err := Normalize(in)
		var invalid *InvalidAddressError
		assert.True(t, errors.As(err, &invalid), in)
	}
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "0x5aAe...eAed", Shorten("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.Equal(t, "0x12", Shorten("0x12"))
}

func TestDisplayNameIsStable(t *testing.T) {
	addr := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	name := DisplayName(addr)

	assert.Equal(t, name, DisplayName(strings.ToLower(addr)))
	assert.Len(t, strings.Fields(name), 2)
	assert.NotEqual(t, name, DisplayName("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"))
	assert.Equal(t, "Unknown", DisplayName(""))
}
