// Licensed under the MIT License.

// Package safeguard tracks acquired OS resources (mounts, loop devices,
// chroot jails) and releases every still-open handle in reverse acquisition
// order on any exit path, including termination signals.
package safeguard

import (
	"os"
	"os/signal"
	"sync"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"golang.org/x/sys/unix"
)

// Guard is an ordered registry of release functions.
type Guard struct {
	mu       sync.Mutex
	handles  []handle
	nextId   int
	released bool
}

type handle struct {
	id      int
	name    string
	release func() error
}

func New() *Guard {
	return &Guard{}
}

// Add registers a release function. Release functions run in reverse
// registration order. The returned remove function unregisters the handle;
// callers invoke it once they have released the resource themselves, so the
// guard only ever holds live resources. Removing an already released or
// removed handle is a no-op.
func (g *Guard) Add(name string, release func() error) (remove func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextId++
	id := g.nextId
	g.handles = append(g.handles, handle{id: id, name: name, release: release})

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		for i, h := range g.handles {
			if h.id == id {
				g.handles = append(g.handles[:i], g.handles[i+1:]...)
				return
			}
		}
	}
}

// Held returns the number of handles not yet released.
func (g *Guard) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return 0
	}
	return len(g.handles)
}

// ReleaseAll releases every registered handle in reverse order. Release
// errors never fail the caller: they are logged and swallowed, since the
// resource may already be gone. Calling ReleaseAll again is a no-op.
func (g *Guard) ReleaseAll() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	handles := g.handles
	g.handles = nil
	g.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		h := handles[i]
		logger.Log.Debugf("Releasing (%s)", h.name)

		err := h.release()
		if err != nil {
			logger.Log.Warnf("Failed to release (%s): %v", h.name, err)
		}
	}
}

// NotifyOnSignals arranges for ReleaseAll to run if the process receives an
// interrupt or termination signal, then exits non-zero. The returned stop
// function restores default signal handling.
func (g *Guard) NotifyOnSignals() (stop func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, unix.SIGINT, unix.SIGTERM)

	go func() {
		sig, ok := <-signals
		if !ok {
			return
		}

		logger.Log.Warnf("Received signal (%s), releasing resources", sig)
		g.ReleaseAll()
		os.Exit(128 + int(sig.(unix.Signal)))
	}()

	return func() {
		signal.Stop(signals)
		close(signals)
	}
}
