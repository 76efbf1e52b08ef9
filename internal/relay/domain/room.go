package domain

import (
	"math/rand"
	"regexp"
	"strings"
)

// roomMarker path segment that precedes the code in a share URL.
const roomMarker = "/room/"

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

// GenerateRoomCode return a random 4-digit room code.
func GenerateRoomCode() string {
	digits := []byte("0123456789")
	b := make([]byte, 4)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}

// NormalizeRoomCode resolve user input to a canonical room code. Accepts a
// bare code or a share URL containing "/room/<code>"; a trailing slash is
// tolerated. Both forms resolve to the identical identifier.
func NormalizeRoomCode(input string) (string, error) {
	code := strings.TrimSpace(input)
	if idx := strings.LastIndex(code, roomMarker); idx >= 0 {
		code = code[idx+len(roomMarker):]
	}
	code = strings.TrimSuffix(code, "/")
	if !codePattern.MatchString(code) {
		return "", &ValidationError{Reason: "invalid room code " + strings.TrimSpace(input)}
	}
	return code, nil
}

// ShareURL build the shareable deep link for a room. The URL is also the
// QR payload on clients.
func ShareURL(baseURL, code string) string {
	return strings.TrimSuffix(baseURL, "/") + roomMarker + code
}
