package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"

	errs "github.com/blackwell-systems/brewdeps/internal/errors"
)

// ImageFormat is an output image type.
type ImageFormat string

const (
	PNG ImageFormat = "png"
	SVG ImageFormat = "svg"
	JPG ImageFormat = "jpg"
)

// ParseImageFormat accepts png, svg, jpg and jpeg, case-insensitively.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(s) {
	case "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	case "jpg", "jpeg":
		return JPG, nil
	}
	return "", errs.New(errs.ErrCodeInvalidInput, "unsupported image format %q (expected png, svg or jpg)", s)
}

// ImagePath returns dotPath with its extension replaced by the format.
func ImagePath(dotPath string, format ImageFormat) string {
	return strings.TrimSuffix(dotPath, filepath.Ext(dotPath)) + "." + string(format)
}

// Renderer turns a DOT file into an image file.
type Renderer interface {
	Render(ctx context.Context, dotPath string, format ImageFormat, imagePath string) error
}

// Graphviz renders with the Graphviz library embedded in the binary, so no
// system install is required.
type Graphviz struct{}

// Render implements Renderer.
func (Graphviz) Render(ctx context.Context, dotPath string, format ImageFormat, imagePath string) error {
	data, err := os.ReadFile(dotPath)
	if err != nil {
		return fmt.Errorf("read DOT: %w", err)
	}

	var gvFormat graphviz.Format
	switch format {
	case PNG:
		gvFormat = graphviz.PNG
	case SVG:
		gvFormat = graphviz.SVG
	case JPG:
		gvFormat = graphviz.JPG
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return os.WriteFile(imagePath, buf.Bytes(), 0644)
}

// DotCommand renders by running the Graphviz dot executable.
type DotCommand struct {
	// Bin is the executable; "dot" on PATH when empty.
	Bin string
}

// Render implements Renderer.
func (d DotCommand) Render(ctx context.Context, dotPath string, format ImageFormat, imagePath string) error {
	bin := d.Bin
	if bin == "" {
		bin = "dot"
	}

	cmd := exec.CommandContext(ctx, bin, "-T"+string(format), dotPath, "-o", imagePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("'%s' command not found; install Graphviz (brew install graphviz): %w", bin, err)
		}
		return fmt.Errorf("%s failed: %w (stderr: %s)", bin, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// RenderImage renders dotPath next to itself and returns the image path.
// Any failure is errs.ErrCodeRenderToolMissing; the DOT file is left in
// place either way.
func RenderImage(ctx context.Context, r Renderer, dotPath string, format ImageFormat) (string, error) {
	imagePath := ImagePath(dotPath, format)
	if err := r.Render(ctx, dotPath, format, imagePath); err != nil {
		return "", errs.Wrap(errs.ErrCodeRenderToolMissing, err,
			"failed to render %s (DOT file kept at %s; try: dot -T%s %s -o %s)",
			imagePath, dotPath, format, dotPath, imagePath)
	}
	return imagePath, nil
}
