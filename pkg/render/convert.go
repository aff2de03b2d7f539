package render

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/matzehuels/ercanvas/pkg/errors"
)

// rsvgTool converts SVG documents. It ships with librsvg.
const rsvgTool = "rsvg-convert"

// ToPDF converts an SVG document to PDF with rsvg-convert. The tool must be on
// PATH; without it the error is UNSUPPORTED and names the package to install.
func ToPDF(ctx context.Context, svg []byte) ([]byte, error) {
	return convertSVG(ctx, svg, "pdf")
}

func convertSVG(ctx context.Context, svg []byte, format string, args ...string) ([]byte, error) {
	bin, err := exec.LookPath(rsvgTool)
	if err != nil {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"%s export needs %s (macOS: brew install librsvg, Debian/Ubuntu: apt install librsvg2-bin)", format, rsvgTool)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, append([]string{"--format", format}, args...)...)
	cmd.Stdin = bytes.NewReader(svg)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "%s: %s", rsvgTool, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
