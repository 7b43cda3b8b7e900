// Package pool owns every device object created by the engine and destroys it
// when its last reference is released.
package pool

import (
	"fmt"

	"github.com/richinsley/goshadermate/graphics"
)

// Deleter destroys a device object according to its kind.
type Deleter interface {
	Delete(kind graphics.ObjectKind, obj graphics.Object)
}

// Handle is an opaque reference to a pooled object. The zero Handle is never
// issued.
type Handle uint32

type entry struct {
	obj   graphics.Object
	kind  graphics.ObjectKind
	count int
}

// Pool is a refcounted table of device objects. It is not safe for concurrent
// use; the render thread owns it.
type Pool struct {
	deleter Deleter
	entries map[Handle]*entry
	next    Handle
}

func New(d Deleter) *Pool {
	return &Pool{deleter: d, entries: make(map[Handle]*entry)}
}

// Add registers obj with a refcount of one.
func (p *Pool) Add(obj graphics.Object, kind graphics.ObjectKind) Handle {
	p.next++
	p.entries[p.next] = &entry{obj: obj, kind: kind, count: 1}
	return p.next
}

// Ref increments the refcount of h and returns h.
func (p *Pool) Ref(h Handle) Handle {
	e, ok := p.entries[h]
	if !ok {
		panic(fmt.Sprintf("pool: ref of released handle %d", h))
	}
	e.count++
	return h
}

// Unref decrements the refcount of h, destroying the object at zero. The zero
// handle is ignored so optional handles can be released unconditionally.
func (p *Pool) Unref(h Handle) {
	if h == 0 {
		return
	}
	e, ok := p.entries[h]
	if !ok {
		panic(fmt.Sprintf("pool: unref of released handle %d", h))
	}
	e.count--
	if e.count > 0 {
		return
	}
	delete(p.entries, h)
	p.deleter.Delete(e.kind, e.obj)
}

// Object returns the live object behind h, or 0 if h is not live.
func (p *Pool) Object(h Handle) graphics.Object {
	if e, ok := p.entries[h]; ok {
		return e.obj
	}
	return 0
}

func (p *Pool) Kind(h Handle) graphics.ObjectKind {
	if e, ok := p.entries[h]; ok {
		return e.kind
	}
	return 0
}

// Count returns the refcount of h, zero once released.
func (p *Pool) Count(h Handle) int {
	if e, ok := p.entries[h]; ok {
		return e.count
	}
	return 0
}

// Len returns the number of live objects.
func (p *Pool) Len() int {
	return len(p.entries)
}
