// Package mpcerr defines the closed error taxonomy of the repository
// builder: ConfigurationError, InvalidManifestError, DigestMismatchError,
// ExternalToolError and IoError. Every one of these is fatal at the point
// of detection; DuplicatePackage is deliberately not here — it is a
// warning, reported through package event instead.
package mpcerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError reports a problem the operator must fix before
// running again: a missing required flag, an unsupported --miktex-series,
// or a required external tool absent from PATH.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configuration wraps err (which may be nil) as a ConfigurationError.
func Configuration(msg string, err error) error {
	return &ConfigurationError{Msg: msg, Err: errors.WithStack(err)}
}

// InvalidManifestError reports a package.ini/mpm.ini that fails to
// parse or is missing a required field.
type InvalidManifestError struct {
	Path string
	Msg  string
	Err  error
}

func (e *InvalidManifestError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid manifest %s: %s", e.Path, e.Msg)
	}
	return fmt.Sprintf("invalid manifest: %s", e.Msg)
}

func (e *InvalidManifestError) Unwrap() error { return e.Err }

func InvalidManifest(path, msg string, err error) error {
	return &InvalidManifestError{Path: path, Msg: msg, Err: err}
}

// DigestMismatchError reports a TDS digest that does not match the
// files it was supposedly computed from.
type DigestMismatchError struct {
	PackageID string
	Want, Got string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch for %s: want %s, got %s", e.PackageID, e.Want, e.Got)
}

func DigestMismatch(id, want, got string) error {
	return &DigestMismatchError{PackageID: id, Want: want, Got: got}
}

// ExternalToolError reports a non-zero exit or spawn failure from an
// external archiver (tar, xz, bzip2, cabextract), with the captured
// combined stdout/stderr attached.
type ExternalToolError struct {
	Tool   string
	Args   []string
	Output []byte
	Err    error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("external tool %s %v failed: %v\n%s", e.Tool, e.Args, e.Err, e.Output)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

func ExternalTool(tool string, args []string, output []byte, err error) error {
	return &ExternalToolError{Tool: tool, Args: args, Output: output, Err: err}
}

// IoError reports any filesystem operation failure: read, write, stat,
// utime, mkdir, rename.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

func Io(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IoError{Op: op, Path: path, Err: errors.WithStack(err)}
}
