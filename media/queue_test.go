// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		q := NewQueue(0)
		for i := 0; i < 1000; i++ {
			if !q.Push(&Item{Data: []byte{byte(i)}}) {
				q.Pop()
				q.Push(&Item{Data: []byte{byte(i)}})
			}
		}
		assert.Equal(t, DefaultQueueLen, q.Len())
		first := q.Pop()
		assert.Equal(t, (1000-DefaultQueueLen)%256, int(first.Data[0]))
		q.Reset()
		assert.Nil(t, q.Pop())
	})

	t.Run("Full", func(t *testing.T) {
		q := NewQueue(2)
		assert.True(t, q.Push(&Item{}))
		assert.True(t, q.Push(&Item{}))
		assert.False(t, q.Push(&Item{}))
		assert.Equal(t, 2, q.Len())
	})

	t.Run("Due", func(t *testing.T) {
		q := NewQueue(4)
		now := time.Now()
		q.Push(&Item{Time: now.Add(5 * time.Millisecond)})

		d, ok := q.TillTail(now)
		assert.True(t, ok)
		assert.Equal(t, 5*time.Millisecond, d)
		assert.Nil(t, q.PopDue(now))

		d, _ = q.TillTail(now.Add(time.Second))
		assert.Equal(t, time.Duration(0), d)
		assert.NotNil(t, q.PopDue(now.Add(5*time.Millisecond)))

		_, ok = q.TillTail(now)
		assert.False(t, ok)
	})

	t.Run("Wait", func(t *testing.T) {
		q := NewQueue(4)
		start := time.Now()
		assert.False(t, q.Wait(20*time.Millisecond))
		assert.True(t, time.Since(start) >= 20*time.Millisecond)

		go func() {
			time.Sleep(10 * time.Millisecond)
			q.Push(&Item{})
		}()
		assert.True(t, q.Wait(time.Second))

		q.Close()
		assert.False(t, q.Wait(time.Second))
		assert.False(t, q.Push(&Item{}))
	})
}
