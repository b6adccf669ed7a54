package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOrigin(t *testing.T) {
	tests := []struct {
		name            string
		listener        listener
		identityPresent bool
		want            RequestOrigin
	}{
		{"tunnel with identity", listenerTunnel, true, OriginTunnelAuthenticated},
		{"tunnel without identity", listenerTunnel, false, OriginUnknown},
		{"lan without identity", listenerLAN, false, OriginLAN},
		{"lan with identity", listenerLAN, true, OriginUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyOrigin(tt.listener, tt.identityPresent))
		})
	}
}
