package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoRef(t *testing.T) {
	tests := []struct {
		in          string
		owner, repo string
		wantErr     bool
	}{
		{in: "acme/api", owner: "acme", repo: "api"},
		{in: " acme/api.git ", owner: "acme", repo: "api"},
		{in: "https://github.com/acme/api.git", owner: "acme", repo: "api"},
		{in: "git@github.com:acme/api.git", owner: "acme", repo: "api"},
		{in: "ssh://git@ghe.example.com/acme/api", owner: "acme", repo: "api"},
		{in: "https://github.com/acme/api/", owner: "acme", repo: "api"},
		{in: "acme", wantErr: true},
		{in: "acme/api/extra", wantErr: true},
		{in: "https://github.com/acme", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := ParseRepoRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}
