package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	require.True(t, New(true, false).Core().Enabled(zap.DebugLevel))
	require.False(t, New(false, false).Core().Enabled(zap.InfoLevel))
	require.True(t, New(false, true).Core().Enabled(zap.WarnLevel))
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	require.Same(t, l, OrNop(l))
}
