// Licensed under the MIT License.

package safeguard

import (
	"errors"
	"os"
	"testing"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

func TestReleaseAllRunsInReverseOrder(t *testing.T) {
	var order []string

	guard := New()
	guard.Add("first", func() error { order = append(order, "first"); return nil })
	guard.Add("second", func() error { order = append(order, "second"); return nil })
	guard.Add("third", func() error { order = append(order, "third"); return nil })
	assert.Equal(t, 3, guard.Held())

	guard.ReleaseAll()
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Zero(t, guard.Held())
}

func TestReleaseAllIsIdempotent(t *testing.T) {
	count := 0

	guard := New()
	guard.Add("resource", func() error { count++; return nil })

	guard.ReleaseAll()
	guard.ReleaseAll()
	assert.Equal(t, 1, count)
}

func TestReleaseAllContinuesPastFailures(t *testing.T) {
	var released []string

	guard := New()
	guard.Add("inner", func() error { released = append(released, "inner"); return nil })
	guard.Add("broken", func() error { return errors.New("device busy") })
	guard.Add("outer", func() error { released = append(released, "outer"); return nil })

	guard.ReleaseAll()

	// The failing handle does not stop the remaining releases.
	assert.Equal(t, []string{"outer", "inner"}, released)
	assert.Zero(t, guard.Held())
}

func TestRemoveUnregistersHandle(t *testing.T) {
	var released []string

	guard := New()
	guard.Add("kept", func() error { released = append(released, "kept"); return nil })
	removeSelf := guard.Add("self released", func() error { released = append(released, "self released"); return nil })
	guard.Add("later", func() error { released = append(released, "later"); return nil })
	assert.Equal(t, 3, guard.Held())

	removeSelf()
	assert.Equal(t, 2, guard.Held())

	// Removing twice is a no-op.
	removeSelf()
	assert.Equal(t, 2, guard.Held())

	guard.ReleaseAll()
	assert.Equal(t, []string{"later", "kept"}, released)
}

func TestRemoveAfterReleaseAllIsANoOp(t *testing.T) {
	count := 0

	guard := New()
	remove := guard.Add("resource", func() error { count++; return nil })

	guard.ReleaseAll()
	remove()

	assert.Equal(t, 1, count)
	assert.Zero(t, guard.Held())
}

func TestReleaseAllOnEmptyGuard(t *testing.T) {
	guard := New()
	guard.ReleaseAll()
	assert.Zero(t, guard.Held())
}
