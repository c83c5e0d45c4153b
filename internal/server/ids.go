package server

import (
	"errors"
	"math/rand"
	"strings"
)

// GenerateGameID returns a fresh 4-letter game id not present in used.
// Short enough to type from another player's screen.
func GenerateGameID(used map[string]bool) string {
	for {
		code := make([]byte, 4)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		id := string(code)

		if !used[id] {
			return id
		}
	}
}

func ValidateGameID(id string) error {
	if len(id) != 4 {
		return errors.New("INVALID_ID: Game id must be exactly 4 characters")
	}

	for _, ch := range strings.ToUpper(id) {
		if ch < 'A' || ch > 'Z' {
			return errors.New("INVALID_ID: Game id must contain only letters A-Z")
		}
	}
	return nil
}

func NormalizeGameID(id string) string {
	return strings.ToUpper(id)
}
