package landnumber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInTaiwan(t *testing.T) {
	require.True(t, inTaiwan(121.5654, 25.0330))
	require.True(t, inTaiwan(120.2, 22.0))

	require.False(t, inTaiwan(120.035141, 23))
	require.False(t, inTaiwan(122.035141, 23))
	require.False(t, inTaiwan(121, 21.8969))
	require.False(t, inTaiwan(121, 25.298401))
	require.False(t, inTaiwan(25.0330, 121.5654))
}

func TestInTaiwanInvalidCoordinates(t *testing.T) {
	require.False(t, inTaiwan(121, 200))
	require.False(t, inTaiwan(121.5, -95))
}
