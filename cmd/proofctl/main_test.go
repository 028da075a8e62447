package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, 2},
		{"unknown command", []string{"refund", "x.png"}, 2},
		{"no image", []string{"extract"}, 2},
		{"unknown flag", []string{"purchase", "--bogus", "x.png"}, 2},
		{"unreadable image", []string{"extract", filepath.Join(t.TempDir(), "missing.png")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(tt.args, io.Discard))
		})
	}
}
