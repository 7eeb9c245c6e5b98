package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"

	"github.com/golang-migrate/migrate/v4/source"
)

// Unit is a single schema change within a [Set].
type Unit struct {
	// Version orders the unit within its set. Versions are unique and
	// strictly increasing.
	Version uint

	// Identifier is a human-readable name for the change, such as
	// "create_users".
	Identifier string

	// Up is the statement (or statements) that applies the change.
	Up string

	// Down is the statement (or statements) that reverts the change. It may
	// be empty.
	Down string
}

// Set is an ordered, immutable collection of schema changes.
//
// A Set is typically built once, at package initialization, and shared by
// every test that needs it. It is safe for concurrent use.
type Set struct {
	name  string
	units []Unit
}

// NewSet returns a new set containing the given units.
//
// The units must be supplied in order of strictly increasing version.
func NewSet(name string, units ...Unit) (*Set, error) {
	if name == "" {
		return nil, errors.New("migration set name must not be empty")
	}

	for i, u := range units {
		if u.Up == "" {
			return nil, fmt.Errorf("%s: migration %d (%s) has no up statement", name, u.Version, u.Identifier)
		}

		if i > 0 && u.Version <= units[i-1].Version {
			return nil, fmt.Errorf(
				"%s: migration %d (%s) must have a version greater than %d",
				name,
				u.Version,
				u.Identifier,
				units[i-1].Version,
			)
		}
	}

	return &Set{
		name:  name,
		units: slices.Clone(units),
	}, nil
}

// MustNewSet is like [NewSet] but panics if the set is invalid.
func MustNewSet(name string, units ...Unit) *Set {
	s, err := NewSet(name, units...)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadSet returns a set built from the migration files in the dir directory
// of fsys.
//
// Files are named using the golang-migrate convention, that is
// "<version>_<identifier>.up.<ext>" and "<version>_<identifier>.down.<ext>".
// Files that do not match the convention are ignored.
func LoadSet(name string, fsys fs.FS, dir string) (*Set, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read migrations: %w", name, err)
	}

	byVersion := map[uint]*Unit{}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		m, err := source.DefaultParse(e.Name())
		if err != nil {
			continue
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read %s: %w", name, e.Name(), err)
		}

		u, ok := byVersion[m.Version]
		if !ok {
			u = &Unit{
				Version:    m.Version,
				Identifier: m.Identifier,
			}
			byVersion[m.Version] = u
		} else if u.Identifier != m.Identifier {
			return nil, fmt.Errorf(
				"%s: migration %d has conflicting identifiers %q and %q",
				name,
				m.Version,
				u.Identifier,
				m.Identifier,
			)
		}

		var dst *string
		switch m.Direction {
		case source.Up:
			dst = &u.Up
		case source.Down:
			dst = &u.Down
		}

		if *dst != "" {
			return nil, fmt.Errorf("%s: duplicate %s migration for version %d", name, m.Direction, m.Version)
		}

		*dst = string(body)
	}

	units := make([]Unit, 0, len(byVersion))
	for _, u := range byVersion {
		units = append(units, *u)
	}

	slices.SortFunc(units, func(a, b Unit) int {
		return cmp.Compare(a.Version, b.Version)
	})

	return NewSet(name, units...)
}

// Name returns the name of the set.
func (s *Set) Name() string {
	return s.name
}

// Len returns the number of units in the set.
func (s *Set) Len() int {
	return len(s.units)
}

// Units returns a copy of the units in the set, in order.
func (s *Set) Units() []Unit {
	return slices.Clone(s.units)
}

// Latest returns the version of the last unit in the set. ok is false if the
// set is empty.
func (s *Set) Latest() (version uint, ok bool) {
	if len(s.units) == 0 {
		return 0, false
	}
	return s.units[len(s.units)-1].Version, true
}

// Pending returns the units with a version greater than applied, in order.
func (s *Set) Pending(applied uint) []Unit {
	i, found := s.index(applied)
	if found {
		i++
	}
	return slices.Clone(s.units[i:])
}

// index returns the position of the unit with the given version, or the
// position at which it would be inserted.
func (s *Set) index(version uint) (int, bool) {
	return slices.BinarySearchFunc(
		s.units,
		version,
		func(u Unit, v uint) int {
			return cmp.Compare(u.Version, v)
		},
	)
}
