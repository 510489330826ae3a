package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/edumap/pkg/render"
)

// Export formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// Artifact is one exported file.
type Artifact struct {
	Format string
	Name   string
	Data   []byte
}

// Export renders the open graph in each requested format (PNG when none
// is given). All formats are produced concurrently; if any fails no
// artifacts are returned.
func (s *Session) Export(ctx context.Context, formats ...string) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = []string{FormatPNG}
	}
	loop := s.cfg.Loop
	if loop == nil || s.store.Len() == 0 {
		s.fail("El grafo no está listo para exportar.", render.ErrNoFrame)
		return nil, render.ErrNoFrame
	}
	title := s.Title()

	out := make([]Artifact, len(formats))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := s.exportOne(loop, f)
			if err != nil {
				return fmt.Errorf("export %s: %w", f, err)
			}
			out[i] = Artifact{Format: f, Name: render.ExportFilename(title, f), Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, render.ErrNoFrame) {
			s.fail("El grafo no está listo para exportar.", err)
		} else {
			s.fail("No se pudo exportar el grafo.", err)
		}
		return nil, err
	}
	return out, nil
}

func (s *Session) exportOne(loop *render.FrameLoop, format string) ([]byte, error) {
	switch format {
	case FormatPNG:
		return render.ExportPNG(loop.Surface, loop.Theme(), s.cfg.ExportScale)
	case FormatSVG:
		var buf bytes.Buffer
		if err := loop.ExportSVG(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
