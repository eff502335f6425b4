package processing

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MemoryProvider keeps submitted files in memory. It backs local development
// and tests; Fail and Hold let callers script provider behaviour.
type MemoryProvider struct {
	mu        sync.Mutex
	objects   map[string][]byte
	confirmed map[string]bool
	fail      map[uuid.UUID]error
	submits   map[uuid.UUID]int
	hold      chan struct{}
	complete  bool
}

// NewMemoryProvider creates a provider. With assetsComplete set every handoff
// reports its derived assets as available.
func NewMemoryProvider(assetsComplete bool) *MemoryProvider {
	return &MemoryProvider{
		objects:   make(map[string][]byte),
		confirmed: make(map[string]bool),
		fail:      make(map[uuid.UUID]error),
		submits:   make(map[uuid.UUID]int),
		complete:  assetsComplete,
	}
}

// Fail makes every submit for resource return err.
func (p *MemoryProvider) Fail(resource uuid.UUID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[resource] = err
}

// Hold blocks submits until the returned func is called.
func (p *MemoryProvider) Hold() (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.hold = ch
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// MarkDerived makes Confirm report the preview at pointer as available.
func (p *MemoryProvider) MarkDerived(pointer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed[pointer] = true
}

// Submits returns how many times resource was submitted.
func (p *MemoryProvider) Submits(resource uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submits[resource]
}

// Object returns the stored bytes behind a storage pointer.
func (p *MemoryProvider) Object(pointer string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.objects[pointer]
	return b, ok
}

func (p *MemoryProvider) Submit(ctx context.Context, a Asset) (Handoff, error) {
	if err := a.Validate(); err != nil {
		return Handoff{}, Classify("submit", err)
	}

	p.mu.Lock()
	p.submits[a.ResourceID]++
	hold := p.hold
	failErr := p.fail[a.ResourceID]
	p.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return Handoff{}, Classify("submit", ctx.Err())
		}
	}
	if failErr != nil {
		return Handoff{}, Classify("submit", failErr)
	}

	data, err := io.ReadAll(a.Body)
	if err != nil {
		return Handoff{}, Classify("submit", err)
	}

	h := Handoff{
		StoragePointer: Pointer("mem", "media", a.Key()),
		PreviewPointer: Pointer("mem", "media", a.PreviewKey()),
		AssetsComplete: p.complete,
	}
	p.mu.Lock()
	p.objects[h.StoragePointer] = data
	p.mu.Unlock()
	return h, nil
}

func (p *MemoryProvider) Confirm(_ context.Context, h Handoff) (bool, error) {
	if h.PreviewPointer == "" {
		return true, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.complete || p.confirmed[h.PreviewPointer], nil
}
