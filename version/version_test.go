package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	dev := Info{CommitHash: "abc1234def", BuildTime: "now", Version: "dev", Protocol: Protocol}
	assert.True(t, strings.HasPrefix(dev.String(), "reportwatch dev"))
	assert.Contains(t, dev.String(), "protocol "+Protocol)

	tagged := Info{CommitHash: "abc", BuildTime: "now", Version: "v1.0.0", Protocol: Protocol}
	assert.True(t, strings.HasPrefix(tagged.String(), "reportwatch v1.0.0"))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc1234", Info{CommitHash: "abc1234def"}.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Protocol, info.Protocol)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
