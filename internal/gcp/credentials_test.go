package gcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	options, explicit := ClientOptions()
	require.False(t, explicit)
	require.Empty(t, options)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/tmp/sa.json")
	options, explicit = ClientOptions()
	require.True(t, explicit)
	require.Len(t, options, 1)

	t.Setenv("GOOGLE_CREDENTIALS", `{"type":"service_account"}`)
	options, explicit = ClientOptions()
	require.True(t, explicit)
	require.Len(t, options, 1)
}

func TestRegionalEndpoint(t *testing.T) {
	_, ok := RegionalEndpoint("us")
	require.False(t, ok)

	_, ok = RegionalEndpoint("")
	require.False(t, ok)

	endpoint, ok := RegionalEndpoint("eu")
	require.True(t, ok)
	require.NotNil(t, endpoint)
}
