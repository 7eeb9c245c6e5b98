package migration

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
)

// Source returns a golang-migrate source driver that reads migrations from s.
func (s *Set) Source() source.Driver {
	return &setSource{s}
}

// setSource is an implementation of [source.Driver] backed by a [Set].
type setSource struct {
	set *Set
}

var _ source.Driver = (*setSource)(nil)

func (d *setSource) Open(string) (source.Driver, error) {
	return nil, errors.New("a migration set source cannot be opened by URL")
}

func (d *setSource) Close() error {
	return nil
}

func (d *setSource) First() (uint, error) {
	if d.set.Len() == 0 {
		return 0, d.notExist("first")
	}
	return d.set.units[0].Version, nil
}

func (d *setSource) Prev(version uint) (uint, error) {
	i, ok := d.set.index(version)
	if !ok || i == 0 {
		return 0, d.notExist(fmt.Sprintf("prev for version %d", version))
	}
	return d.set.units[i-1].Version, nil
}

func (d *setSource) Next(version uint) (uint, error) {
	i, ok := d.set.index(version)
	if !ok || i+1 >= d.set.Len() {
		return 0, d.notExist(fmt.Sprintf("next for version %d", version))
	}
	return d.set.units[i+1].Version, nil
}

func (d *setSource) ReadUp(version uint) (io.ReadCloser, string, error) {
	i, ok := d.set.index(version)
	if !ok {
		return nil, "", d.notExist(fmt.Sprintf("read up for version %d", version))
	}

	u := d.set.units[i]
	return io.NopCloser(strings.NewReader(u.Up)), u.Identifier, nil
}

func (d *setSource) ReadDown(version uint) (io.ReadCloser, string, error) {
	i, ok := d.set.index(version)
	if !ok || d.set.units[i].Down == "" {
		return nil, "", d.notExist(fmt.Sprintf("read down for version %d", version))
	}

	u := d.set.units[i]
	return io.NopCloser(strings.NewReader(u.Down)), u.Identifier, nil
}

func (d *setSource) notExist(op string) error {
	return &fs.PathError{
		Op:   op,
		Path: d.set.name,
		Err:  fs.ErrNotExist,
	}
}
