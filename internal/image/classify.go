package image

import (
	"context"
	"strings"

	"github.com/ZebulonRouseFrantzich/bootstick/internal/runner"
)

// Classifier describes the content of a file.
type Classifier interface {
	Classify(ctx context.Context, path string) (string, error)
}

// FileClassifier shells out to file(1).
type FileClassifier struct {
	runner runner.Runner
	bin    string
}

// NewFileClassifier creates a classifier. An empty bin means "file".
func NewFileClassifier(run runner.Runner, bin string) *FileClassifier {
	if bin == "" {
		bin = "file"
	}
	return &FileClassifier{runner: run, bin: bin}
}

// Classify returns the brief description printed by file -b.
func (c *FileClassifier) Classify(ctx context.Context, path string) (string, error) {
	cmd := runner.Command{Name: c.bin, Args: []string{"-b", path}}
	out, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := out.Err(cmd); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text()), nil
}
