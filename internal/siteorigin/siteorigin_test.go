package siteorigin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attrib-io/attributor/internal/siteorigin"
)

func TestOrigin(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{name: "web with path", uri: "https://ads.example.com/path?q=1", want: "https://ads.example.com"},
		{name: "web with port", uri: "https://example.com:8443/", want: "https://example.com:8443"},
		{name: "missing scheme", uri: "example.com", wantErr: true},
		{name: "empty", uri: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := siteorigin.Origin(tc.uri)
			if tc.wantErr {
				require.ErrorIs(t, err, siteorigin.ErrUnresolvable)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSite_Web(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{name: "subdomain collapses to registrable domain", uri: "https://ads.example.com/x", want: "https://example.com"},
		{name: "bare domain", uri: "https://example.com", want: "https://example.com"},
		{name: "single-label host", uri: "http://localhost:8080", want: "http://localhost"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := siteorigin.Site(tc.uri, false)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSite_AppIsItsOwnOrigin(t *testing.T) {
	got, err := siteorigin.Site("https://play.google.com/store/apps/details?id=com.example.app", true)

	require.NoError(t, err)
	assert.Equal(t, "https://play.google.com", got)
}

func TestSite_Unresolvable(t *testing.T) {
	_, err := siteorigin.Site("not-a-uri", false)

	require.ErrorIs(t, err, siteorigin.ErrUnresolvable)
}
