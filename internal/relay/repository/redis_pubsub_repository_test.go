package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelName(t *testing.T) {
	assert.Equal(t, "room:5821", ChannelName("5821"))
}

func TestPresenceKey(t *testing.T) {
	assert.Equal(t, "room:5821:presence", presenceKey("5821"))
}
