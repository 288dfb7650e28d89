package intake

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ImagePlaceholder in a recognizer command is replaced by the image path.
const ImagePlaceholder = "{image}"

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// CommandRecognizer runs an external OCR program, by default tesseract.
// Argv[0] is the program; an argument equal to ImagePlaceholder is replaced
// by the image path, or the path is appended when there is none.
type CommandRecognizer struct {
	Argv []string
}

// Recognize runs the command and returns its trimmed stdout.
func (c CommandRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	if len(c.Argv) == 0 {
		return "", fmt.Errorf("no recognizer command configured")
	}
	args := make([]string, 0, len(c.Argv))
	replaced := false
	for _, a := range c.Argv[1:] {
		if a == ImagePlaceholder {
			a = imagePath
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, imagePath)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", c.Argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ScanUnits recognizes a dose from a syringe or pen dial image. Recognition
// runs off the caller's goroutine. Any failure, an empty reading or a
// non-positive number gives ok=false: "no reading" is not an error.
func ScanUnits(ctx context.Context, r Recognizer, imagePath string) (units int, ok bool) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := r.Recognize(ctx, imagePath)
		done <- result{text, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return 0, false
	case res = <-done:
	}
	if res.err != nil {
		return 0, false
	}

	digits := DigitsOnly(res.text)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
