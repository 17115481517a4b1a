package testsupport

import (
	"context"
	"sync"

	"fieldsync/internal/connectivity"
)

// StaticProber reports a fixed connectivity state that tests can flip.
type StaticProber struct {
	mu    sync.Mutex
	state connectivity.State
	calls int
}

// NewStaticProber starts online or offline.
func NewStaticProber(online bool) *StaticProber {
	p := &StaticProber{}
	p.Set(online)
	return p
}

// Set changes the reported state for subsequent probes.
func (p *StaticProber) Set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = connectivity.State{Connected: online, InternetReachable: online}
}

func (p *StaticProber) Probe(context.Context) connectivity.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.state
}

// Calls returns how many probes ran.
func (p *StaticProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
