// Package payload defines the typed, fixed-length numeric vectors that move
// through a dataflow graph and the tags that brand them.
package payload

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrLengthMismatch is returned when a vector length disagrees with the
// length fixed by its tag.
var ErrLengthMismatch = errors.New("length mismatch")

// ErrInvalidTag is returned when a tag definition is malformed.
var ErrInvalidTag = errors.New("invalid tag")

// A Tag identifies a kind of payload and fixes its length. Tags are compared
// by identity: two tags are never interchangeable, even when their lengths
// are equal.
type Tag struct {
	name   string
	length int
	id     int
}

// Name returns the name of the tag.
func (t *Tag) Name() string {
	return t.name
}

// Len returns the number of values that every payload of this tag carries.
func (t *Tag) Len() int {
	return t.length
}

// ID returns the registration order of the tag within its registry.
func (t *Tag) ID() int {
	return t.id
}

func (t *Tag) String() string {
	return fmt.Sprintf("%s[%d]", t.name, t.length)
}

// A Registry owns a set of uniquely named tags.
type Registry struct {
	lock sync.Mutex
	tags map[string]*Tag
}

// NewRegistry creates an empty tag registry.
func NewRegistry() *Registry {
	return &Registry{tags: make(map[string]*Tag)}
}

// Define registers a tag. Defining an existing name again with the same
// length returns the existing tag; with a different length it fails with
// ErrLengthMismatch.
func (r *Registry) Define(name string, length int) (*Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTag)
	}

	if length <= 0 {
		return nil, fmt.Errorf("%w: tag %s has length %d",
			ErrInvalidTag, name, length)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if t, found := r.tags[name]; found {
		if t.length != length {
			return nil, fmt.Errorf("%w: tag %s is defined with length %d, "+
				"redefined with %d", ErrLengthMismatch, name, t.length, length)
		}

		return t, nil
	}

	t := &Tag{name: name, length: length, id: len(r.tags)}
	r.tags[name] = t

	return t, nil
}

// MustDefine is like Define but panics on error. It is meant for package
// level tag declarations.
func (r *Registry) MustDefine(name string, length int) *Tag {
	t, err := r.Define(name, length)
	if err != nil {
		panic(err)
	}

	return t
}

// Lookup returns the tag with the given name.
func (r *Registry) Lookup(name string) (*Tag, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, found := r.tags[name]

	return t, found
}

// Tags returns all the tags in registration order.
func (r *Registry) Tags() []*Tag {
	r.lock.Lock()
	defer r.lock.Unlock()

	tags := make([]*Tag, 0, len(r.tags))
	for _, t := range r.tags {
		tags = append(tags, t)
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].id < tags[j].id })

	return tags
}

var defaultRegistry = NewRegistry()

// DefineTag registers a tag in the process-wide registry.
func DefineTag(name string, length int) (*Tag, error) {
	return defaultRegistry.Define(name, length)
}

// MustDefineTag registers a tag in the process-wide registry and panics on
// error.
func MustDefineTag(name string, length int) *Tag {
	return defaultRegistry.MustDefine(name, length)
}

// LookupTag finds a tag in the process-wide registry.
func LookupTag(name string) (*Tag, bool) {
	return defaultRegistry.Lookup(name)
}
