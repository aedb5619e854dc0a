package image

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

var (
	// ErrChecksumMismatch is returned when a sidecar lists a different SHA-256.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrSignatureInvalid is returned when a detached signature does not verify.
	ErrSignatureInvalid = errors.New("signature invalid")
)

// CheckStatus is the outcome of one integrity check.
type CheckStatus string

const (
	CheckSkipped  CheckStatus = "skipped"
	CheckVerified CheckStatus = "verified"
	CheckFailed   CheckStatus = "failed"
)

// IntegrityResult records which sidecars were checked.
type IntegrityResult struct {
	Checksum      CheckStatus `json:"checksum"`
	ChecksumFile  string      `json:"checksum_file,omitempty"`
	Signature     CheckStatus `json:"signature"`
	SignatureFile string      `json:"signature_file,omitempty"`
}

// Integrity checks optional checksum and signature sidecars next to an image.
type Integrity struct {
	checksum    bool
	keyringPath string
}

// NewIntegrity creates a checker. checksum enables SHA-256 sidecars;
// a non-empty keyringPath enables OpenPGP signature sidecars.
func NewIntegrity(checksum bool, keyringPath string) *Integrity {
	return &Integrity{checksum: checksum, keyringPath: keyringPath}
}

// Check runs every enabled check for which a sidecar exists.
func (i *Integrity) Check(imagePath string) (IntegrityResult, error) {
	result := IntegrityResult{Checksum: CheckSkipped, Signature: CheckSkipped}

	if i.checksum {
		if sidecar, expected, ok := findSidecarChecksum(imagePath); ok {
			result.ChecksumFile = sidecar
			if err := verifySHA256(imagePath, expected); err != nil {
				result.Checksum = CheckFailed
				return result, err
			}
			result.Checksum = CheckVerified
		}
	}

	if i.keyringPath != "" {
		if sig, ok := findSignature(imagePath); ok {
			result.SignatureFile = sig
			if err := verifySignature(imagePath, sig, i.keyringPath); err != nil {
				result.Signature = CheckFailed
				return result, err
			}
			result.Signature = CheckVerified
		}
	}

	return result, nil
}

// findSidecarChecksum looks for <image>.sha256 and then SHA256SUMS in the
// image directory, returning the first entry that names the image.
func findSidecarChecksum(imagePath string) (string, string, bool) {
	name := filepath.Base(imagePath)
	candidates := []string{
		imagePath + ".sha256",
		filepath.Join(filepath.Dir(imagePath), "SHA256SUMS"),
	}
	for _, sidecar := range candidates {
		sum, err := findChecksum(sidecar, name)
		if err == nil {
			return sidecar, sum, true
		}
	}
	return "", "", false
}

func verifySHA256(imagePath, expected string) error {
	actual, err := calculateSHA256(imagePath)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w for %s:\nactual:   %s\nexpected: %s",
			ErrChecksumMismatch, filepath.Base(imagePath), actual, expected)
	}
	return nil
}

func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// findChecksum finds the checksum for filename in a checksum file.
// Format: "abc123def456  filename.iso", optionally "*filename.iso" (binary mode).
// A file holding a bare digest applies to filename.
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		switch len(parts) {
		case 0:
			continue
		case 1:
			if strings.HasSuffix(checksumPath, ".sha256") {
				return parts[0], nil
			}
			continue
		}

		listed := strings.TrimPrefix(parts[1], "*")
		if listed == filename || filepath.Base(listed) == filename {
			return parts[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("checksum for %s not found in %s", filename, checksumPath)
}

func findSignature(imagePath string) (string, bool) {
	for _, ext := range []string{".sig", ".asc"} {
		candidate := imagePath + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func verifySignature(imagePath, signaturePath, keyringPath string) error {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return err
	}

	imageFile, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer imageFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	// Armored first, then binary.
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, imageFile, sigFile, nil)
	if err != nil {
		if _, seekErr := imageFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind image: %w", seekErr)
		}
		if _, seekErr := sigFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, imageFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSignatureInvalid, filepath.Base(signaturePath), err)
	}
	return nil
}

func loadKeyring(keyringPath string) (openpgp.EntityList, error) {
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		if _, seekErr := keyringFile.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring %s is empty", keyringPath)
	}
	return keyring, nil
}
