package tds

import (
	"crypto/md5"
	"io"
	"os"
	"sort"

	"github.com/miktex/mpc/mpcerr"
)

// FileDigest computes the streaming 128-bit content digest of the file
// at path.
func FileDigest(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, mpcerr.Io("open", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, mpcerr.Io("read", path, err)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// CopyWithDigest copies src to dst, computing the digest of the bytes
// copied, then sets both dst's modification and access times to src's
// modification time. src's access time is not copied.
// Any read, write, stat, or utime failure is an IoError.
func CopyWithDigest(src, dst string) (Digest, error) {
	in, err := os.Open(src)
	if err != nil {
		return Digest{}, mpcerr.Io("open", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return Digest{}, mpcerr.Io("stat", src, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return Digest{}, mpcerr.Io("create", dst, err)
	}

	h := md5.New()
	w := io.MultiWriter(out, h)
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		return Digest{}, mpcerr.Io("write", dst, err)
	}
	if err := out.Close(); err != nil {
		return Digest{}, mpcerr.Io("close", dst, err)
	}

	mtime := info.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return Digest{}, mpcerr.Io("utime", dst, err)
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// DigestTree computes the composite TDS digest over files: the sorted
// set of (relative-path, file-digest) pairs. Entries are visited in
// case-insensitive DOS-sorted key order — this order is part of the
// wire contract and MUST be reproduced exactly by any reimplementation.
func DigestTree(files map[string]Digest) Digest {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return DOSNormalize(keys[i]) < DOSNormalize(keys[j])
	})

	h := md5.New()
	for _, k := range keys {
		dosPath := DOSNormalize(k)
		h.Write([]byte(dosPath))
		d := files[k]
		h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
