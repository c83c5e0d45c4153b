package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"arcade-server/internal/server"
)

func TestGenerateGameIDFormat(t *testing.T) {
	assert := assert.New(t)
	used := make(map[string]bool)

	for range 100 {
		id := server.GenerateGameID(used)

		assert.Equal(4, len(id))
		for _, ch := range id {
			assert.True(ch >= 'A' && ch <= 'Z')
		}
	}
}

func TestGenerateGameIDAvoidsUsedIDs(t *testing.T) {
	used := map[string]bool{
		"AAAA": true,
		"ZZZZ": true,
		"TEST": true,
	}

	for range 100 {
		id := server.GenerateGameID(used)

		assert.NotEqual(t, "AAAA", id)
		assert.NotEqual(t, "ZZZZ", id)
		assert.NotEqual(t, "TEST", id)
	}
}

func TestValidateGameID(t *testing.T) {
	for _, id := range []string{"BEAR", "GAME", "PLAY", "AAAA", "ZZZZ"} {
		assert.NoError(t, server.ValidateGameID(id), "id %s", id)
	}

	for _, id := range []string{"", "ABC", "ABCDE", "AB1D", "AB D", "AB-D"} {
		assert.Error(t, server.ValidateGameID(id), "id %q", id)
	}
}

func TestNormalizeGameID(t *testing.T) {
	assert.Equal(t, "BEAR", server.NormalizeGameID("bear"))
	assert.Equal(t, "BEAR", server.NormalizeGameID("BeAr"))
}
