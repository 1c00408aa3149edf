package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrigins_Default(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"*"}, ParseOrigins(""))
	assert.Equal(t, []string{"*"}, ParseOrigins("*"))
	assert.Equal(t, []string{"*"}, ParseOrigins("  "))
}

func TestParseOrigins_CommaSeparated(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"https://a.example", "https://b.example"},
		ParseOrigins("https://a.example, https://b.example"))
}

func TestParseOrigins_SkipsEmptySegments(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"https://a.example"}, ParseOrigins("https://a.example,,"))
}
