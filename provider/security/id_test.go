// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package security

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Equal(t, a+1, b)
	assert.Equal(t, strconv.FormatUint(uint64(a), 10), a.String())
}

func TestToken(t *testing.T) {
	id := NewID()
	t1 := id.Token("admin", 20)
	t2 := id.Token("admin", 20)
	assert.Len(t, t1, 32)
	assert.NotEqual(t, t1, t2)
	assert.NotContains(t, t1, "=")
	assert.Len(t, id.Token("", 10), 16)
}
