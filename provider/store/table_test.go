// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string
	Value int
}

func (it *item) Key() string { return it.Name }

type memProvider struct {
	records []*item
	full    []*item
	saves   int
	removes int
	err     error
}

func (p *memProvider) LoadAll() ([]*item, error) { return p.records, p.err }

func (p *memProvider) Flush(full, saves, removes []*item) error {
	if p.err != nil {
		return p.err
	}
	p.full, p.saves, p.removes = full, len(saves), len(removes)
	return nil
}

func newTable() *Table[*item] {
	return New("items", func(it *item) error {
		if it.Name == "" {
			return errors.New("empty name")
		}
		return nil
	})
}

func TestTable(t *testing.T) {
	tbl := newTable()
	p := &memProvider{records: []*item{{Name: "b", Value: 2}, {Name: ""}, {Name: "a", Value: 1}}}
	require.NoError(t, tbl.Reset(p))
	require.Len(t, tbl.All(), 2)
	assert.Equal(t, "a", tbl.All()[0].Name)

	tbl.Save(&item{Name: "c", Value: 3}, nil)
	tbl.Save(&item{Name: "a", Value: 10}, func(dst, src *item) { dst.Value += src.Value })
	a, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, 11, a.Value)

	saves, removes := tbl.Changes()
	assert.Equal(t, 2, saves)
	assert.Equal(t, 0, removes)

	_, ok = tbl.Del("c")
	assert.True(t, ok)
	_, ok = tbl.Del("c")
	assert.False(t, ok)
	tbl.Del("b")
	tbl.Save(&item{Name: "b", Value: 20}, nil)

	saves, removes = tbl.Changes()
	assert.Equal(t, 2, saves, "a and b")
	assert.Equal(t, 1, removes, "c")

	require.NoError(t, tbl.Flush())
	assert.Len(t, p.full, 2)
	assert.Equal(t, 2, p.saves)
	assert.Equal(t, 1, p.removes)
	saves, removes = tbl.Changes()
	assert.Zero(t, saves+removes)
}

func TestTable_FlushError(t *testing.T) {
	tbl := newTable()
	p := &memProvider{}
	require.NoError(t, tbl.Reset(p))
	assert.NoError(t, tbl.Flush(), "nothing to flush")

	tbl.Save(&item{Name: "a"}, nil)
	p.err = errors.New("disk full")
	assert.True(t, errors.Is(tbl.Flush(), p.err))
	saves, _ := tbl.Changes()
	assert.Equal(t, 1, saves, "kept for retry")

	assert.True(t, errors.Is(tbl.Reset(p), p.err))
}
