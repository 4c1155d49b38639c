package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServeCmd_Use(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
}

func TestServeCmd_ServicesNotConfigured(t *testing.T) {
	oldAuth, oldEngine, oldDispatcher, oldSweeper := authFlow, syncEngine, dispatcher, sweeper
	authFlow, syncEngine, dispatcher, sweeper = nil, nil, nil, nil
	defer func() {
		authFlow, syncEngine, dispatcher, sweeper = oldAuth, oldEngine, oldDispatcher, oldSweeper
	}()

	_, err := runCommand(t, "serve")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "services not configured")
}
