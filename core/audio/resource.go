package audio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrResourceReleased = errors.New("audio resource already released")
	ErrResourceNotFound = errors.New("audio resource not found")
)

const resourceURLScheme = "blob:"

// Pool hands out addressable audio resources and tracks which of them are
// still live. A resource stays resolvable through [Pool.Lookup] until it is
// released.
type Pool struct {
	mu        sync.Mutex
	resources map[string]*Resource

	allocated int
	released  int
}

func NewPool() *Pool {
	return &Pool{resources: map[string]*Resource{}}
}

// Allocate wraps data as a new live resource. The pool takes ownership of
// data; callers must not modify it afterwards.
func (p *Pool) Allocate(mediaType string, data []byte) *Resource {
	if mediaType == "" {
		mediaType = DefaultMediaType
	}

	resource := &Resource{
		id:        uuid.NewString(),
		mediaType: mediaType,
		data:      data,
		pool:      p,
	}

	p.mu.Lock()
	p.resources[resource.id] = resource
	p.allocated++
	p.mu.Unlock()

	return resource
}

// Lookup resolves a resource by its ID or its blob URL.
func (p *Pool) Lookup(idOrURL string) (*Resource, error) {
	id := strings.TrimPrefix(idOrURL, resourceURLScheme)

	p.mu.Lock()
	defer p.mu.Unlock()

	resource, ok := p.resources[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return resource, nil
}

// Live returns the number of allocated resources not yet released.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// Stats reports lifetime allocation and release counts.
func (p *Pool) Stats() (allocated, released int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated, p.released
}

func (p *Pool) revoke(id string) {
	p.mu.Lock()
	if _, ok := p.resources[id]; ok {
		delete(p.resources, id)
		p.released++
	}
	p.mu.Unlock()
}

// Resource is a revocable handle to decoded audio bytes.
type Resource struct {
	id        string
	mediaType string

	mu       sync.Mutex
	data     []byte
	released bool

	pool *Pool
}

func (r *Resource) ID() string        { return r.id }
func (r *Resource) URL() string       { return resourceURLScheme + r.id }
func (r *Resource) MediaType() string { return r.mediaType }

// Size returns the payload length, or 0 once released.
func (r *Resource) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Bytes returns the payload. It fails after the resource was released.
func (r *Resource) Bytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil, ErrResourceReleased
	}
	return r.data, nil
}

// Open returns a reader over the payload.
func (r *Resource) Open() (io.Reader, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (r *Resource) IsReleased() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Release revokes the resource and drops its payload. Only the first call
// has an effect; later calls return [ErrResourceReleased].
func (r *Resource) Release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return ErrResourceReleased
	}
	r.released = true
	r.data = nil
	r.mu.Unlock()

	if r.pool != nil {
		r.pool.revoke(r.id)
	}
	return nil
}
