package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{name: "full semver", version: "1.2.3", expected: "v1.2.3"},
		{name: "v prefix", version: "v1.2.3", expected: "v1.2.3"},
		{name: "short version", version: "1.2", expected: "v1.2.0"},
		{name: "prerelease", version: "v2.0.0-rc.1", expected: "v2.0.0-rc.1"},
		{name: "build metadata", version: "1.0.0+abc", expected: "v1.0.0+abc"},
		{name: "development build", version: "dev", expected: "dev"},
		{name: "empty", version: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Normalize(tt.version))
		})
	}
}

func TestGetVersionInfo(t *testing.T) {
	t.Parallel()

	info := GetVersionInfo()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}
