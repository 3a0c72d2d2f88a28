package sign

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// generateTestKey writes a fresh, unprotected ASCII-armored private
// key to a temp file and returns its path.
func generateTestKey(t *testing.T) string {
	t.Helper()
	entity, err := openpgp.NewEntity("Test", "test", "test@example.com", nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("armor encode failed: %v", err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	w.Close()

	path := filepath.Join(t.TempDir(), "key.asc")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSignINIUnsigned(t *testing.T) {
	content := []byte("[repository]\ndate=1\n")

	out, signed, err := SignINI(content, nil)
	if err != nil {
		t.Fatalf("SignINI failed: %v", err)
	}
	if signed {
		t.Error("expected unsigned when kp is nil")
	}
	if !bytes.Equal(out, content) {
		t.Error("content should be returned unchanged when unsigned")
	}
}

func TestSignINISigned(t *testing.T) {
	keyPath := generateTestKey(t)
	kp := FileKeyProvider{KeyPath: keyPath}

	out, signed, err := SignINI([]byte("sign me"), kp)
	if err != nil {
		t.Fatalf("SignINI failed: %v", err)
	}
	if !signed {
		t.Error("expected signed=true")
	}
	if !strings.Contains(string(out), "-----BEGIN PGP SIGNED MESSAGE-----") {
		t.Error("output does not look like a signed message")
	}
}

func TestExtractPublicKey(t *testing.T) {
	keyPath := generateTestKey(t)
	kp := FileKeyProvider{KeyPath: keyPath}

	pub, err := ExtractPublicKey(kp, true)
	if err != nil {
		t.Fatalf("ExtractPublicKey failed: %v", err)
	}
	if !strings.Contains(string(pub), "-----BEGIN PGP PUBLIC KEY BLOCK-----") {
		t.Error("output does not look like an armored public key")
	}
}
