package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload SyncPayload
		wantErr string
	}{
		{name: "valid", payload: SyncPayload{ConnectionID: "conn-1", TeamID: "team-1"}},
		{name: "missing connection", payload: SyncPayload{TeamID: "team-1"}, wantErr: "missing connectionId"},
		{name: "missing team", payload: SyncPayload{ConnectionID: "conn-1"}, wantErr: "missing teamId"},
		{name: "missing both", payload: SyncPayload{}, wantErr: "missing connectionId, teamId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSyncConnectionJob_Clone(t *testing.T) {
	job := &SyncConnectionJob{JobID: "j1", Result: &SyncResult{TotalUpserts: 3}}

	c := job.Clone()
	c.Result.TotalUpserts = 9

	assert.Equal(t, 3, job.Result.TotalUpserts)
	assert.Equal(t, JobTypeManualSync, c.GetType())
}
