package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	require.NotEmpty(t, v)
	require.NotEmpty(t, c)
	require.NotEmpty(t, d)
	require.Equal(t, v, GetVersion())
}

func TestString(t *testing.T) {
	s := String()
	require.Contains(t, s, "storefront")
	require.Contains(t, s, "version=")
	require.Contains(t, s, "commit=")
	require.Contains(t, s, "date=")
}

func TestOverride(t *testing.T) {
	prev := version
	t.Cleanup(func() { version = prev })

	version = "1.2.3"
	require.Equal(t, "1.2.3", GetVersion())
	require.Contains(t, String(), "version=1.2.3")
}
