package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
)

func writeImage(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"absolute", "/srv/iso/debian.iso", "/srv/iso/debian.iso"},
		{"double quoted", `"/srv/iso/debian 12.iso"`, "/srv/iso/debian 12.iso"},
		{"single quoted", `'/srv/iso/x.iso'`, "/srv/iso/x.iso"},
		{"tilde", "~/Downloads/x.iso", "/home/op/Downloads/x.iso"},
		{"quoted tilde", `"~/x.iso"`, "/home/op/x.iso"},
		{"relative", "isos/x.iso", "/work/isos/x.iso"},
		{"dot segments", "../x.iso", "/x.iso"},
		{"surrounding space", "  /a.iso  ", "/a.iso"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.raw, "/home/op", "/work")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandPath_Errors(t *testing.T) {
	_, err := ExpandPath(`""`, "/home/op", "/work")
	assert.ErrorIs(t, err, ErrImageNotFound)

	_, err = ExpandPath("~/x.iso", "", "/work")
	assert.Error(t, err)
}

func TestVerifier_Verify(t *testing.T) {
	dir := t.TempDir()
	iso := writeImage(t, dir, "debian.iso", []byte("not really an iso"))

	fake := runner.NewFake().Set("file", 0, "ISO 9660 CD-ROM filesystem data 'Debian 12.5.0 amd64 n' (bootable)\n")
	v := NewVerifier(NewFileClassifier(fake, ""), nil, "/home/op", dir)

	spec, err := v.Verify(context.Background(), "debian.iso")
	require.NoError(t, err)
	assert.Equal(t, iso, spec.Path)
	assert.Equal(t, uint64(17), spec.Size)
	assert.Equal(t, TypeISO9660, spec.Type)
	assert.True(t, spec.Readable)
	assert.Contains(t, spec.Description, "Debian 12.5.0")
	assert.False(t, spec.NeedsTypeConfirmation(false))

	calls := fake.CallsTo("file")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-b", iso}, calls[0].Args)
}

func TestVerifier_UnknownType(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "disk.img", []byte{0xeb, 0x3c, 0x90})

	tests := []struct {
		name string
		fake *runner.Fake
	}{
		{"non iso description", runner.NewFake().Set("file", 0, "DOS/MBR boot sector")},
		{"classifier fails", runner.NewFake().Set("file", 1, "file: cannot open")},
		{"classifier missing", runner.NewFake()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(NewFileClassifier(tt.fake, "file"), nil, "", dir)
			spec, err := v.Verify(context.Background(), "disk.img")
			require.NoError(t, err)
			assert.Equal(t, TypeUnknown, spec.Type)
			assert.True(t, spec.NeedsTypeConfirmation(false))
			assert.False(t, spec.NeedsTypeConfirmation(true))
		})
	}
}

func TestVerifier_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "isos"), 0755))
	v := NewVerifier(nil, nil, "/home/op", dir)

	_, err := v.Verify(context.Background(), "missing.iso")
	assert.ErrorIs(t, err, ErrImageNotFound)

	_, err = v.Verify(context.Background(), "isos")
	assert.ErrorIs(t, err, ErrImageUnreadable)

	if os.Geteuid() != 0 {
		locked := writeImage(t, dir, "locked.iso", []byte("x"))
		require.NoError(t, os.Chmod(locked, 0))
		_, err = v.Verify(context.Background(), "locked.iso")
		assert.ErrorIs(t, err, ErrImageUnreadable)
	}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestIntegrity_Checksum(t *testing.T) {
	content := []byte("debian installer bytes")

	t.Run("no sidecar is skipped", func(t *testing.T) {
		dir := t.TempDir()
		iso := writeImage(t, dir, "a.iso", content)

		result, err := NewIntegrity(true, "").Check(iso)
		require.NoError(t, err)
		assert.Equal(t, CheckSkipped, result.Checksum)
		assert.Equal(t, CheckSkipped, result.Signature)
	})

	t.Run("per image sidecar", func(t *testing.T) {
		dir := t.TempDir()
		iso := writeImage(t, dir, "a.iso", content)
		writeImage(t, dir, "a.iso.sha256", []byte(sha256Hex(content)+"\n"))

		result, err := NewIntegrity(true, "").Check(iso)
		require.NoError(t, err)
		assert.Equal(t, CheckVerified, result.Checksum)
		assert.Equal(t, iso+".sha256", result.ChecksumFile)
	})

	t.Run("SHA256SUMS with binary marker", func(t *testing.T) {
		dir := t.TempDir()
		iso := writeImage(t, dir, "a.iso", content)
		sums := "0000  other.iso\n" + sha256Hex(content) + " *a.iso\n"
		writeImage(t, dir, "SHA256SUMS", []byte(sums))

		result, err := NewIntegrity(true, "").Check(iso)
		require.NoError(t, err)
		assert.Equal(t, CheckVerified, result.Checksum)
	})

	t.Run("mismatch", func(t *testing.T) {
		dir := t.TempDir()
		iso := writeImage(t, dir, "a.iso", content)
		writeImage(t, dir, "SHA256SUMS", []byte(sha256Hex([]byte("other"))+"  a.iso\n"))

		result, err := NewIntegrity(true, "").Check(iso)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
		assert.Equal(t, CheckFailed, result.Checksum)
	})

	t.Run("disabled ignores sidecar", func(t *testing.T) {
		dir := t.TempDir()
		iso := writeImage(t, dir, "a.iso", content)
		writeImage(t, dir, "a.iso.sha256", []byte("deadbeef\n"))

		result, err := NewIntegrity(false, "").Check(iso)
		require.NoError(t, err)
		assert.Equal(t, CheckSkipped, result.Checksum)
	})
}

// signingFixture creates an armored public keyring and a signer.
func signingFixture(t *testing.T, dir string) (*openpgp.Entity, string) {
	t.Helper()
	entity, err := openpgp.NewEntity("Release Signing", "test", "release@example.org", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	keyring := filepath.Join(dir, "keyring.asc")
	require.NoError(t, os.WriteFile(keyring, buf.Bytes(), 0644))
	return entity, keyring
}

func TestIntegrity_Signature(t *testing.T) {
	content := []byte("signed image contents")
	dir := t.TempDir()
	signer, keyring := signingFixture(t, dir)

	t.Run("valid armored signature", func(t *testing.T) {
		imgDir := t.TempDir()
		iso := writeImage(t, imgDir, "a.iso", content)

		var sig bytes.Buffer
		require.NoError(t, openpgp.ArmoredDetachSign(&sig, signer, bytes.NewReader(content), nil))
		writeImage(t, imgDir, "a.iso.asc", sig.Bytes())

		result, err := NewIntegrity(false, keyring).Check(iso)
		require.NoError(t, err)
		assert.Equal(t, CheckVerified, result.Signature)
		assert.Equal(t, iso+".asc", result.SignatureFile)
	})

	t.Run("valid binary signature", func(t *testing.T) {
		imgDir := t.TempDir()
		iso := writeImage(t, imgDir, "a.iso", content)

		var sig bytes.Buffer
		require.NoError(t, openpgp.DetachSign(&sig, signer, bytes.NewReader(content), nil))
		writeImage(t, imgDir, "a.iso.sig", sig.Bytes())

		result, err := NewIntegrity(false, keyring).Check(iso)
		require.NoError(t, err)
		assert.Equal(t, CheckVerified, result.Signature)
	})

	t.Run("tampered image", func(t *testing.T) {
		imgDir := t.TempDir()
		iso := writeImage(t, imgDir, "a.iso", []byte("tampered"))

		var sig bytes.Buffer
		require.NoError(t, openpgp.ArmoredDetachSign(&sig, signer, bytes.NewReader(content), nil))
		writeImage(t, imgDir, "a.iso.asc", sig.Bytes())

		result, err := NewIntegrity(false, keyring).Check(iso)
		assert.True(t, errors.Is(err, ErrSignatureInvalid), "got %v", err)
		assert.Equal(t, CheckFailed, result.Signature)
	})

	t.Run("no keyring configured", func(t *testing.T) {
		imgDir := t.TempDir()
		iso := writeImage(t, imgDir, "a.iso", content)
		writeImage(t, imgDir, "a.iso.sig", []byte("garbage"))

		result, err := NewIntegrity(false, "").Check(iso)
		require.NoError(t, err)
		assert.Equal(t, CheckSkipped, result.Signature)
	})
}

func TestVerifier_IntegrityFailureFailsVerification(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.iso", []byte("abc"))
	writeImage(t, dir, "a.iso.sha256", []byte(sha256Hex([]byte("xyz"))))

	v := NewVerifier(nil, NewIntegrity(true, ""), "", dir)
	_, err := v.Verify(context.Background(), "a.iso")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestNearCapacity(t *testing.T) {
	const gb = 1 << 30
	assert.False(t, NearCapacity(3*gb, 8*gb, 0.9))
	assert.True(t, NearCapacity(7.5*gb, 8*gb, 0.9))
	assert.False(t, NearCapacity(7.5*gb, 8*gb, 0))
	assert.False(t, NearCapacity(1, 0, 0.9))

	assert.True(t, Exceeds(9*gb, 8*gb))
	assert.False(t, Exceeds(8*gb, 8*gb))
}
