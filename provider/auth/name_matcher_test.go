// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_alwaysMatcher_Match(t *testing.T) {
	m := NewNameMatcher(" * ")
	assert.True(t, m.Match("mic"))
	assert.True(t, m.Match("studio/a/mic"))
}

func Test_nameMatcher_Match(t *testing.T) {
	tests := []struct {
		name string
		mask string
		s    string
		want bool
	}{
		{"g1", "mic", "mic", true},
		{"g2", "mic", "MIC", true},
		{"g3", "mic", "mic/left", false},
		{"e1", "studio/*", "studio", true},
		{"e2", "studio/*", "studio/mic", true},
		{"e3", "studio/*", "studio/a/mic", true},
		{"e4", "studio/*", "stage/mic", false},
		{"c1", "studio/+/spk/*", "studio/a/spk", true},
		{"c2", "studio/+/spk/*", "studio/b/spk/left", true},
		{"c3", "studio/+/spk/*", "studio/spk/left", false},
		{"c4", "/studio/+", "studio/mic/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewNameMatcher(tt.mask).Match(tt.s))
		})
	}
}
