package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareLink(t *testing.T) {
	host := func() string { return "192.168.1.20" }

	tests := []struct {
		listen string
		want   string
	}{
		{":8888", "http://192.168.1.20:8888/"},
		{"0.0.0.0:9000", "http://192.168.1.20:9000/"},
		{"10.0.0.5:8080", "http://10.0.0.5:8080/"},
	}
	for _, tt := range tests {
		got, err := ShareLink(tt.listen, host)
		require.NoError(t, err, tt.listen)
		assert.Equal(t, tt.want, got)
	}

	_, err := ShareLink("8888", host)
	assert.Error(t, err)
}

func TestListenPort(t *testing.T) {
	p, err := ListenPort(":8888")
	require.NoError(t, err)
	assert.Equal(t, 8888, p)

	_, err = ListenPort("localhost")
	assert.Error(t, err)
}

func TestPeerURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.2:8888/", Peer{Addr: "10.0.0.2:8888"}.URL())
}
