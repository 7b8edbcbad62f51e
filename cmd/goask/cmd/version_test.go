package cmd

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommandStructure(t *testing.T) {
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
	assert.NotEmpty(t, versionCmd.Short)
	assert.NotEmpty(t, versionCmd.Long)
	assert.NotNil(t, versionCmd.Run)
}

func TestRunVersion(t *testing.T) {
	originalVersion, originalCommit := Version, Commit
	defer func() {
		Version, Commit = originalVersion, originalCommit
	}()

	tests := []struct {
		name    string
		version string
		commit  string
		want    []string
	}{
		{"dev version", "0.0.1-dev", "unknown", []string{"goask version 0.0.1-dev", "Commit: unknown"}},
		{"release version", "1.2.0", "abc123def456", []string{"goask version 1.2.0", "Commit: abc123def456"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = tt.version, tt.commit

			var buf bytes.Buffer
			versionCmd.SetOut(&buf)
			defer versionCmd.SetOut(nil)

			runVersion(versionCmd, nil)

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			assert.Contains(t, out, runtime.Version())
			assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
		})
	}
}
