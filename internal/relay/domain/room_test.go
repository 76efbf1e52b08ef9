package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoomCode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare code", "5821", "5821"},
		{"code with whitespace", "  5821 ", "5821"},
		{"share url", "https://host/room/5821", "5821"},
		{"share url with trailing slash", "https://host/room/5821/", "5821"},
		{"share url with path prefix", "https://host/app/room/5821", "5821"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeRoomCode(tc.input)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeRoomCode_Rejects(t *testing.T) {
	for _, input := range []string{
		"",
		"abc",
		"123",
		"12345",
		"12a4",
		"https://host/room/",
		"https://host/room/abcd",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := NormalizeRoomCode(input)
			assert.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateRoomCode()
		assert.Regexp(t, `^[0-9]{4}$`, code)
	}
}

func TestShareURL(t *testing.T) {
	assert.Equal(t, "https://host/room/5821", ShareURL("https://host", "5821"))
	assert.Equal(t, "https://host/room/5821", ShareURL("https://host/", "5821"))

	// A share URL round-trips through normalization to the same code.
	code, err := NormalizeRoomCode(ShareURL("https://host", "5821"))
	assert.NoError(t, err)
	assert.Equal(t, "5821", code)
}
