package version

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionInfo_Defaults(t *testing.T) {
	ResetBuildVars()
	t.Cleanup(ResetBuildVars)

	vi := NewVersionInfo()
	assert.Equal(t, DefaultVersion, vi.Version)
	assert.Equal(t, DefaultCommit, vi.Commit)
	assert.Equal(t, DefaultBuildTime, vi.BuildTime)
	assert.True(t, vi.IsDevelopment())
}

func TestNewVersionInfo_BuildVars(t *testing.T) {
	SetBuildVars("v1.2.3", "abc123", "2025-06-01T12:00:00Z")
	t.Cleanup(ResetBuildVars)

	vi := NewVersionInfo()
	assert.Equal(t, "v1.2.3", vi.Version)
	assert.Equal(t, "abc123", vi.Commit)
	assert.False(t, vi.IsDevelopment())
}

func TestFormatShort(t *testing.T) {
	t.Parallel()

	vi := &VersionInfo{Version: "v1.2.3"}
	assert.Equal(t, "v1.2.3", vi.FormatShort())
}

func TestFormatFull(t *testing.T) {
	t.Parallel()

	vi := &VersionInfo{Version: "v1.2.3", Commit: "abc123", BuildTime: "2025-06-01T12:00:00Z"}
	output := vi.FormatFull()

	assert.Contains(t, output, ApplicationName)
	assert.Contains(t, output, "Version: v1.2.3")
	assert.Contains(t, output, "Commit: abc123")
	assert.Contains(t, output, "Built: 2025-06-01T12:00:00Z")
}

func TestWrite(t *testing.T) {
	t.Parallel()

	vi := &VersionInfo{Version: "v1.2.3", Commit: "abc123", BuildTime: DefaultBuildTime}

	var short bytes.Buffer
	require.NoError(t, vi.Write(&short, true))
	assert.Equal(t, "v1.2.3\n", short.String())

	var full bytes.Buffer
	require.NoError(t, vi.Write(&full, false))
	assert.Contains(t, full.String(), ApplicationName)
}

func TestGetBuildTime(t *testing.T) {
	t.Parallel()

	t.Run("RFC3339", func(t *testing.T) {
		t.Parallel()

		vi := &VersionInfo{BuildTime: "2025-06-01T12:00:00Z"}
		parsed := vi.GetBuildTime()
		assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), parsed)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		vi := &VersionInfo{BuildTime: DefaultBuildTime}
		assert.True(t, vi.GetBuildTime().IsZero())
	})

	t.Run("unparseable", func(t *testing.T) {
		t.Parallel()

		vi := &VersionInfo{BuildTime: "yesterday"}
		assert.True(t, vi.GetBuildTime().IsZero())
	})
}
