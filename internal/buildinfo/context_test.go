package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
		commit    string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			version:   UnknownValue,
			buildDate: UnknownValue,
			commit:    UnknownValue,
		},
		{
			name:      "empty values",
			ctx:       NewContext("", "", ""),
			version:   UnknownValue,
			buildDate: UnknownValue,
			commit:    UnknownValue,
		},
		{
			name:      "pre-release version",
			ctx:       NewContext("1.0.0-beta.1", "2024-01-01", "abc123"),
			version:   "1.0.0-beta.1",
			buildDate: "2024-01-01",
			commit:    "abc123",
		},
		{
			name:      "full revision is shortened",
			ctx:       NewContext("1.0.0", "2024-01-01", "0123456789abcdef0123"),
			version:   "1.0.0",
			buildDate: "2024-01-01",
			commit:    "0123456789ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.buildDate, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.commit, tt.ctx.GetCommit())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()

	ctx := NewContext("1.2.3", "2024-01-01", "abc123")
	got := ctx.String()
	assert.Contains(t, got, "healthdb 1.2.3")
	assert.Contains(t, got, "commit abc123")
	assert.Contains(t, got, runtime.GOOS+"/"+runtime.GOARCH)
}
