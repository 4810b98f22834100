package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name  string
		build BuildInfo
		want  versionResponse
	}{
		{
			name:  "with all values",
			build: BuildInfo{Version: "0.1.0", GitCommit: "abc123", BuildDate: "2026-01-28T12:00:00Z"},
			want:  versionResponse{Success: true, Version: "0.1.0", GitCommit: "abc123", BuildDate: "2026-01-28T12:00:00Z"},
		},
		{
			name:  "with defaults",
			build: BuildInfo{},
			want:  versionResponse{Success: true, Version: "dev", GitCommit: "unknown", BuildDate: "unknown"},
		},
		{
			name:  "with partial values",
			build: BuildInfo{Version: "1.0.0"},
			want:  versionResponse{Success: true, Version: "1.0.0", GitCommit: "unknown", BuildDate: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			VersionHandler(tt.build)(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var got versionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

			tt.want.GoVersion = runtime.Version()
			assert.Equal(t, tt.want, got)
		})
	}
}
