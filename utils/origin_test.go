package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopPrivateDomainAndScheme(t *testing.T) {
	tests := []struct {
		raw         string
		want        string
		expectError bool
	}{
		{raw: "https://a.b.example.com/path?q=1", want: "https://example.com"},
		{raw: "https://shop.example.co.uk", want: "https://example.co.uk"},
		{raw: "https://LOCALHOST:8080", want: "https://localhost"},
		{raw: "http://127.0.0.1:9000", want: "http://127.0.0.1"},
		{raw: "https://[::1]:8443/path", want: "https://[::1]"},
		{raw: "https://[2001:DB8::1]", want: "https://[2001:db8::1]"},
		{raw: "not a url", expectError: true},
		{raw: "/relative", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := TopPrivateDomainAndScheme(tt.raw)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinOriginPath(t *testing.T) {
	got, err := JoinOriginPath("https://adtech.example:8443/ignored?x=1", "/.well-known/attribution-reporting/report-event-attribution")
	require.NoError(t, err)
	assert.Equal(t, "https://adtech.example:8443/.well-known/attribution-reporting/report-event-attribution", got)

	got, err = JoinOriginPath("https://adtech.example", "debug/verbose")
	require.NoError(t, err)
	assert.Equal(t, "https://adtech.example/debug/verbose", got)

	_, err = JoinOriginPath("adtech.example", "/x")
	assert.Error(t, err)
}

func TestIsAppURI(t *testing.T) {
	assert.True(t, IsAppURI("android-app://com.example.shop"))
	assert.False(t, IsAppURI("https://shop.example"))
}
