// Package image validates a source image before it is written to a device.
package image

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/device"
	"github.com/ZebulonRouseFrantzich/bootstick/internal/logger"
)

var (
	// ErrImageNotFound is returned when the path does not exist.
	ErrImageNotFound = errors.New("image not found")
	// ErrImageUnreadable is returned when the path exists but cannot be read as a file.
	ErrImageUnreadable = errors.New("image not readable")
)

// Type is the detected image format.
type Type string

const (
	TypeISO9660 Type = "iso9660"
	TypeUnknown Type = "unknown"
)

// Spec describes a verified source image.
type Spec struct {
	Path        string          `json:"path"`
	Size        uint64          `json:"size"`
	Type        Type            `json:"type"`
	Description string          `json:"description,omitempty"`
	Readable    bool            `json:"readable"`
	Integrity   IntegrityResult `json:"integrity"`
}

// HumanSize formats the image size.
func (s *Spec) HumanSize() string {
	return device.FormatSize(s.Size)
}

// NeedsTypeConfirmation reports whether the operator should confirm a
// non-ISO image. Media that accepts any raw image never asks.
func (s *Spec) NeedsTypeConfirmation(acceptsAnyImage bool) bool {
	return !acceptsAnyImage && s.Type != TypeISO9660
}

// Verifier resolves and checks image paths.
type Verifier struct {
	classifier Classifier
	integrity  *Integrity
	home       string
	workDir    string
}

// NewVerifier creates a verifier. home is used for ~ expansion and workDir
// for relative paths. integrity may be nil to skip sidecar checks.
func NewVerifier(classifier Classifier, integrity *Integrity, home, workDir string) *Verifier {
	return &Verifier{
		classifier: classifier,
		integrity:  integrity,
		home:       home,
		workDir:    workDir,
	}
}

// Verify resolves rawPath and checks that it names a readable image.
// Type detection is best effort and never fails verification.
func (v *Verifier) Verify(ctx context.Context, rawPath string) (*Spec, error) {
	log := logger.FromContext(ctx)

	path, err := ExpandPath(rawPath, v.home, v.workDir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrImageNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %v", path, ErrImageUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, ErrImageUnreadable)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrImageUnreadable, err)
	}
	f.Close()

	spec := &Spec{
		Path:     path,
		Size:     uint64(info.Size()),
		Type:     TypeUnknown,
		Readable: true,
	}

	if v.classifier != nil {
		desc, err := v.classifier.Classify(ctx, path)
		if err != nil {
			log.Debug("image type detection failed", "path", path, "error", err)
		} else {
			spec.Description = desc
			spec.Type = typeFromDescription(desc)
		}
	}

	if v.integrity != nil {
		result, err := v.integrity.Check(path)
		spec.Integrity = result
		if err != nil {
			return nil, err
		}
	}

	log.Debug("image verified", "path", path, "size", spec.Size, "type", spec.Type)
	return spec, nil
}

// ExpandPath strips surrounding quotes, expands a leading ~ to home and
// resolves relative paths against workDir.
func ExpandPath(raw, home, workDir string) (string, error) {
	path := strings.TrimSpace(raw)
	path = trimQuotes(path)
	if path == "" {
		return "", fmt.Errorf("empty path: %w", ErrImageNotFound)
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home == "" {
			return "", fmt.Errorf("cannot expand %q: home directory unknown", raw)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	return filepath.Clean(path), nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func typeFromDescription(desc string) Type {
	if strings.Contains(desc, "ISO 9660") {
		return TypeISO9660
	}
	return TypeUnknown
}
