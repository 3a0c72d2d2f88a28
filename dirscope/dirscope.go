// Package dirscope provides a scoped handle for temporarily changing
// the process's current working directory. Archive creation needs tar
// to see relative paths rooted at a package's Files/ directory;
// dirscope guarantees the original directory is restored on every exit
// path, including panics, per the resource-scoping design note.
package dirscope

import (
	"os"

	"github.com/miktex/mpc/mpcerr"
)

// Scope is an open "current directory changed" handle. Call Close (or
// defer it) to restore the previous directory.
type Scope struct {
	previous string
	closed   bool
}

// Enter changes the process's working directory to dir and returns a
// Scope whose Close restores the previous one. Typical use:
//
//	sc, err := dirscope.Enter(pkgFilesDir)
//	if err != nil { return err }
//	defer sc.Close()
func Enter(dir string) (*Scope, error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, mpcerr.Io("getwd", "", err)
	}
	if err := os.Chdir(dir); err != nil {
		return nil, mpcerr.Io("chdir", dir, err)
	}
	return &Scope{previous: prev}, nil
}

// Close restores the directory that was current when Enter was called.
// Safe to call more than once; only the first call has effect.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.Chdir(s.previous); err != nil {
		return mpcerr.Io("chdir", s.previous, err)
	}
	return nil
}
