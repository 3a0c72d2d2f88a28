// Package event carries build-progress notifications out of the core
// pipeline. Every stage takes a Listener and reports through it instead
// of writing to stdout/stderr directly, so a CLI front-end, a test, or a
// library caller can each decide what to do with them.
package event

import (
	"encoding/json"
	"fmt"
)

// Listener receives one event at a time, in the order they occur.
type Listener func(fmt.Stringer)

// Nop is a Listener that discards everything; used when a caller passes
// a nil Listener.
func Nop(fmt.Stringer) {}

func orNop(l Listener) Listener {
	if l == nil {
		return Nop
	}
	return l
}

// Emit calls l (or the no-op listener) with e.
func Emit(l Listener, e fmt.Stringer) { orNop(l)(e) }

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// StagingRead is emitted once per staging directory successfully parsed.
type StagingRead struct {
	Path      string `json:"path,omitempty"`
	PackageID string `json:"package_id,omitempty"`
}

func (e StagingRead) String() string { return jsonString(e) }

// PackageReused is emitted when the archive reconciler decides an
// existing archive is still current for a package.
type PackageReused struct {
	PackageID    string `json:"package_id,omitempty"`
	Archive      string `json:"archive,omitempty"`
	TimePackaged int64  `json:"time_packaged,omitempty"`
}

func (e PackageReused) String() string { return jsonString(e) }

// PackageRebuilt is emitted when the archive reconciler rebuilds a
// package's archive.
type PackageRebuilt struct {
	PackageID    string `json:"package_id,omitempty"`
	Archive      string `json:"archive,omitempty"`
	ArchiveSize  int64  `json:"archive_size,omitempty"`
	TimePackaged int64  `json:"time_packaged,omitempty"`
}

func (e PackageRebuilt) String() string { return jsonString(e) }

// Categorized is emitted once per required-by/umbrella edge the
// categorizer adds.
type Categorized struct {
	PackageID  string `json:"package_id,omitempty"`
	RequiredBy string `json:"required_by,omitempty"`
	Umbrella   bool   `json:"umbrella,omitempty"`
}

func (e Categorized) String() string { return jsonString(e) }

// ArtifactWritten is emitted once per database artifact (mpm.ini
// archive, tpm directory archive, package-manifests.ini archive,
// files.csv.lzma, pr.ini) written to the repository directory.
type ArtifactWritten struct {
	Path    string `json:"path,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Signed  bool   `json:"signed,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func (e ArtifactWritten) String() string { return jsonString(e) }

// Warning is emitted for any non-fatal condition: duplicate package ids,
// unknown dependency referents, manifest/archive digest disagreement.
type Warning struct {
	Message string `json:"message,omitempty"`
}

func (e Warning) String() string { return jsonString(e) }
