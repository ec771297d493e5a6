package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPersonalTokenLength(t *testing.T) {
	token := NewPersonalToken()

	assert.Len(t, token, PersonalTokenLength)
}

func TestNewPersonalTokenCharset(t *testing.T) {
	token := NewPersonalToken()

	for _, c := range token {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		assert.True(t, isHex, "unexpected character %q in token %s", c, token)
	}
}

func TestNewPersonalTokenUnique(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token := NewPersonalToken()
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}
