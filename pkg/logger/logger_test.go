package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsUsableForEveryEnvironment(t *testing.T) {
	// "" covers the bootstrap window before configuration is loaded.
	for _, env := range []string{"", "local", "dev"} {
		log := New(env, "test")
		require.NotNil(t, log.Info(), "logger for env %q must be enabled", env)
	}
}
