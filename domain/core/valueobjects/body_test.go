package valueobjects

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "path-backend/pkg/errors"
)

func TestNewDraftBody(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"empty is the blank sentinel", "", false},
		{"long enough", "hello world", false},
		{"exactly eight", "12345678", false},
		{"too short", "short", true},
		{"padding does not count", "   short    ", true},
		{"whitespace only", "      \n       ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := NewDraftBody(tt.text, 8)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMinLength))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, body.String())
		})
	}
}

func TestBody_LosesMostOf(t *testing.T) {
	old := NewBody(strings.Repeat("x", 3000))

	assert.True(t, old.LosesMostOf(NewBody(strings.Repeat("x", 300)), 2000, 0.8))
	assert.False(t, old.LosesMostOf(NewBody(strings.Repeat("x", 601)), 2000, 0.8))
	assert.False(t, old.LosesMostOf(NewBody(strings.Repeat("x", 4000)), 2000, 0.8))
	assert.False(t, NewBody("tiny").LosesMostOf(NewBody(""), 2000, 0.8))
}

func TestBody_LengthCountsCharacters(t *testing.T) {
	assert.Equal(t, 5, NewBody("héllo").Len())
	assert.Equal(t, 6, len(NewBody("héllo").Bytes()))
}
