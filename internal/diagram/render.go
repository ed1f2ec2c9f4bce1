package diagram

import (
	"context"
	"strings"

	"github.com/rendis/playback/pkg/schema"
)

// Format names a diagram output.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatDOT     Format = "dot"
	FormatSVG     Format = "svg"
	FormatPNG     Format = "png"
	FormatASCII   Format = "ascii"
)

// ParseFormat resolves a user-supplied format name. Empty means Mermaid.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatMermaid, nil
	case FormatMermaid, FormatDOT, FormatSVG, FormatPNG, FormatASCII:
		return f, nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeValidation, "unsupported diagram format %q", s).
			WithDetails(map[string]any{"supported": []string{"mermaid", "dot", "svg", "png", "ascii"}})
	}
}

// ContentType returns the MIME type of a rendered format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	case FormatDOT:
		return "text/vnd.graphviz; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render renders m in format f.
func Render(ctx context.Context, m *Model, f Format) ([]byte, error) {
	switch f {
	case FormatDOT:
		return RenderDOT(ctx, m)
	case FormatSVG:
		return RenderSVG(ctx, m)
	case FormatPNG:
		return RenderPNG(ctx, m)
	case FormatASCII:
		return []byte(RenderASCII(m)), nil
	default:
		return []byte(RenderMermaid(m)), nil
	}
}
