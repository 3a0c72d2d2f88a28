// Package sign clearsigns the INI artifacts the database writer
// produces, using an optionally-configured private key. The core only
// ever sees the narrow KeyProvider interface — it never touches key
// material directly.
package sign

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"

	"github.com/miktex/mpc/mpcerr"
)

// KeyProvider is the narrow signing hook the core holds optionally
// (§9 "Signing hook"): get_private_key_file()/get_passphrase() in the
// spec's vocabulary.
type KeyProvider interface {
	// PrivateKeyFile returns the path to an ASCII-armored private key,
	// and whether one is configured at all.
	PrivateKeyFile() (path string, ok bool)
	// Passphrase returns the passphrase protecting the private key, if
	// any.
	Passphrase() (string, bool)
}

// FileKeyProvider is a KeyProvider backed by a private-key file path
// and an optional passphrase file path, as configured by the CLI's
// --private-key-file/--passphrase-file flags.
type FileKeyProvider struct {
	KeyPath        string
	PassphrasePath string
}

func (p FileKeyProvider) PrivateKeyFile() (string, bool) {
	return p.KeyPath, p.KeyPath != ""
}

func (p FileKeyProvider) Passphrase() (string, bool) {
	if p.PassphrasePath == "" {
		return "", false
	}
	data, err := os.ReadFile(p.PassphrasePath)
	if err != nil {
		return "", false
	}
	return strings.TrimRight(string(data), "\r\n"), true
}

// SignINI clearsigns content with the key kp supplies. When kp is nil
// or supplies no key, content is returned unchanged (written unsigned),
// per §9: "absent ⇒ write unsigned."
func SignINI(content []byte, kp KeyProvider) ([]byte, bool, error) {
	if kp == nil {
		return content, false, nil
	}
	keyPath, ok := kp.PrivateKeyFile()
	if !ok {
		return content, false, nil
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, false, mpcerr.Io("read", keyPath, err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(string(keyData)))
	if err != nil {
		return nil, false, mpcerr.Configuration("cannot parse private key", err)
	}
	var signer *openpgp.Entity
	for _, e := range entities {
		if e.PrivateKey != nil {
			signer = e
			break
		}
	}
	if signer == nil {
		return nil, false, mpcerr.Configuration("private key file contains no private key", nil)
	}

	if pass, ok := kp.Passphrase(); ok && signer.PrivateKey.Encrypted {
		if err := signer.PrivateKey.Decrypt([]byte(pass)); err != nil {
			return nil, false, mpcerr.Configuration("cannot decrypt private key", err)
		}
	}

	var out bytes.Buffer
	w, err := clearsign.Encode(&out, signer.PrivateKey, nil)
	if err != nil {
		return nil, false, fmt.Errorf("clearsign: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return nil, false, fmt.Errorf("clearsign write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, false, fmt.Errorf("clearsign close: %w", err)
	}
	return out.Bytes(), true, nil
}

// ExtractPublicKey returns the public half of the key kp supplies,
// ASCII-armored if armored is true. Used to publish a public.asc/
// public.gpg alongside the signed repository, mirroring the teacher's
// deb repository publication step.
func ExtractPublicKey(kp KeyProvider, armored bool) ([]byte, error) {
	keyPath, ok := kp.PrivateKeyFile()
	if !ok {
		return nil, mpcerr.Configuration("no private key configured", nil)
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, mpcerr.Io("read", keyPath, err)
	}
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(string(keyData)))
	if err != nil {
		return nil, mpcerr.Configuration("cannot parse private key", err)
	}
	var signer *openpgp.Entity
	for _, e := range entities {
		if e.PrivateKey != nil {
			signer = e
			break
		}
	}
	if signer == nil {
		return nil, mpcerr.Configuration("private key file contains no private key", nil)
	}

	var buf bytes.Buffer
	if armored {
		w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
		if err != nil {
			return nil, err
		}
		if err := signer.Serialize(w); err != nil {
			return nil, err
		}
		w.Close()
	} else if err := signer.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
