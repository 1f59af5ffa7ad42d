package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ctx         *Context
		wantVersion string
		wantDate    string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty values", NewContext("", ""), UnknownValue, UnknownValue},
		{"release", NewContext("1.0.0", "2024-05-01T10:00:00Z"), "1.0.0", "2024-05-01T10:00:00Z"},
		{"pre-release tag", NewContext("1.0.0-beta.1", ""), "1.0.0-beta.1", UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantVersion, tt.ctx.Version())
			assert.Equal(t, tt.wantDate, tt.ctx.BuildDate())
			assert.Equal(t, "majorvocal@"+tt.wantVersion, tt.ctx.Release())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "majorvocal 1.2.0 (built 2024-05-01)", NewContext("1.2.0", "2024-05-01").String())
	assert.Equal(t, "majorvocal unknown (built unknown)", (*Context)(nil).String())
}
