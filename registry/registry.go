// Package registry provides the run-time selection tables used to construct
// interchangeable implementations (boundary conditions, schemes, solvers,
// physical models) from a type name read out of configuration.
//
// Tables are built explicitly at startup by the package that owns the
// interface:
//
//	r := registry.New[Drag, Args]("drag")
//	r.MustRegister("SchillerNaumann", newSchillerNaumann)
//	d, err := r.Create(name, args)
//
// Create fails with an *UnknownTypeError, which matches ErrUnknownType and
// lists the valid type names.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownType = errors.New("unknown type")
	ErrDuplicate   = errors.New("duplicate type")
)

type UnknownTypeError struct {
	Kind  string
	Key   string
	Valid []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s type %q, valid %s types are: %s",
		e.Kind, e.Key, e.Kind, strings.Join(e.Valid, ", "))
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

type Constructor[T any, A any] func(args A) (T, error)

type Registry[T any, A any] struct {
	kind    string
	ctors   map[string]Constructor[T, A]
	aliases map[string]string
}

func New[T any, A any](kind string) *Registry[T, A] {
	return &Registry[T, A]{
		kind:    kind,
		ctors:   make(map[string]Constructor[T, A]),
		aliases: make(map[string]string),
	}
}

func (r *Registry[T, A]) Kind() string { return r.kind }

func (r *Registry[T, A]) Register(key string, ctor Constructor[T, A]) error {
	if len(key) == 0 {
		return fmt.Errorf("empty %s type name", r.kind)
	}
	if ctor == nil {
		return fmt.Errorf("nil constructor for %s type %q", r.kind, key)
	}
	if r.Has(key) {
		return fmt.Errorf("%w: %s type %q already registered", ErrDuplicate, r.kind, key)
	}
	r.ctors[key] = ctor
	return nil
}

// MustRegister is Register for startup tables, where a failure is a programming error
func (r *Registry[T, A]) MustRegister(key string, ctor Constructor[T, A]) *Registry[T, A] {
	if err := r.Register(key, ctor); err != nil {
		panic(err)
	}
	return r
}

// Alias makes alias select the constructor registered under key
func (r *Registry[T, A]) Alias(alias, key string) error {
	if _, ok := r.ctors[key]; !ok {
		return &UnknownTypeError{Kind: r.kind, Key: key, Valid: r.Keys()}
	}
	if r.Has(alias) {
		return fmt.Errorf("%w: %s type %q already registered", ErrDuplicate, r.kind, alias)
	}
	r.aliases[alias] = key
	return nil
}

func (r *Registry[T, A]) Has(key string) bool {
	if _, ok := r.ctors[key]; ok {
		return true
	}
	_, ok := r.aliases[key]
	return ok
}

// Resolve returns the registered name for key, following aliases
func (r *Registry[T, A]) Resolve(key string) (string, bool) {
	if _, ok := r.ctors[key]; ok {
		return key, true
	}
	target, ok := r.aliases[key]
	return target, ok
}

func (r *Registry[T, A]) Create(key string, args A) (t T, err error) {
	name, ok := r.Resolve(key)
	if !ok {
		err = &UnknownTypeError{Kind: r.kind, Key: key, Valid: r.Keys()}
		return
	}
	if t, err = r.ctors[name](args); err != nil {
		err = fmt.Errorf("constructing %s type %q: %w", r.kind, key, err)
	}
	return
}

// Keys lists the registered type names (not aliases), sorted
func (r *Registry[T, A]) Keys() []string {
	keys := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Aliases lists alias -> type name pairs, sorted by alias
func (r *Registry[T, A]) Aliases() [][2]string {
	out := make([][2]string, 0, len(r.aliases))
	for a, k := range r.aliases {
		out = append(out, [2]string{a, k})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
