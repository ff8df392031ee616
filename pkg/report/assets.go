package report

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

//go:embed static
var staticFS embed.FS

// AssetNames lists the static files shipped next to the report
var AssetNames = []string{"index.js", "sorttable.js", "josm.svg"}

// CopyAssets writes the static assets into dir verbatim
func CopyAssets(ctx context.Context, dir string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range AssetNames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(staticFS, "static/"+name)
			if err != nil {
				return fmt.Errorf("read asset %s: %w", name, err)
			}
			if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
				return fmt.Errorf("copy asset %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
