package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeEventID(t *testing.T) {
	assert.Equal(t, "42161:0xabc:7", MakeEventID(42161, "0xABC", 7))
	assert.Equal(t, "1:0x:0", MakeEventID(1, "0x", 0))
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "0xdead-12", RecordID("0xDEAD", 12))
}

func TestNormalizeAddress(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
		{"  0xAbC \n", "0xabc"},
		{"", ""},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, NormalizeAddress(tc.in))
	}
}
