package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Levels []string `json:"levels" validate:"required,min=1"`
	Count  int      `json:"count"  validate:"gte=1"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"levels":["A1"],"count":2}`},
		{name: "malformed", body: `{"levels":`, wantErr: true},
		{name: "unknown field", body: `{"levels":["A1"],"colour":"red"}`, wantErr: true},
		{name: "trailing data", body: `{"levels":["A1"]} {"count":1}`, wantErr: true},
		{name: "oversized", body: `{"levels":["` + strings.Repeat("a", MaxBodyBytes) + `"]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var got sampleRequest
			err := DecodeJSON(w, r, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"A1"}, got.Levels)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Levels: []string{"A1"}, Count: 1}))
	assert.Error(t, ValidateRequest(sampleRequest{Count: 1}))
	assert.Error(t, ValidateRequest(sampleRequest{Levels: []string{"A1"}}))
}
