package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    ConnectionStatus
		wantErr bool
	}{
		{"connected", ConnectionConnected, false},
		{" Disconnected ", ConnectionDisconnected, false},
		{"UNKNOWN", ConnectionUnknown, false},
		{"", "", true},
		{"reconnecting", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConnectionStatus(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectionStatus_Valid(t *testing.T) {
	assert.True(t, ConnectionConnected.Valid())
	assert.False(t, ConnectionStatus("error").Valid())
}
