package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fjod/chaos-shop/internal/apperr"
	"github.com/fjod/chaos-shop/internal/faults"
)

var (
	ErrAssetNotFound       = fmt.Errorf("product image %w", apperr.ErrNotFound)
	ErrSimulatedPermission = fmt.Errorf("product images: %w: %w", apperr.ErrSimulatedFault, fs.ErrPermission)
)

// ImageURL is the path templates and API clients use for a product image.
// Images are always served through AssetServer so chaos flags apply.
func ImageURL(filename string) string {
	return "/images/products/" + filename
}

type AssetServer struct {
	files     fs.FS
	faults    faults.Checker
	slowDelay time.Duration
	sleep     func(time.Duration)
}

func NewAssetServer(dir string, checker faults.Checker, slowDelay time.Duration) *AssetServer {
	return newAssetServer(os.DirFS(dir), checker, slowDelay, time.Sleep)
}

func newAssetServer(files fs.FS, checker faults.Checker, slowDelay time.Duration, sleep func(time.Duration)) *AssetServer {
	if slowDelay <= 0 {
		slowDelay = 3 * time.Second
	}
	return &AssetServer{
		files:     files,
		faults:    checker,
		slowDelay: slowDelay,
		sleep:     sleep,
	}
}

// Serve writes the named image. Flags are checked in a fixed order:
// permission error (before any filesystem access), broken images, slow
// images, then the real lookup.
func (s *AssetServer) Serve(w http.ResponseWriter, r *http.Request, filename string) error {
	ctx := r.Context()

	if s.faults.IsEnabled(ctx, faults.ImagePermission) {
		slog.InfoContext(ctx, "chaos: image permission error", "file", filename)
		return ErrSimulatedPermission
	}

	if s.faults.IsEnabled(ctx, faults.BrokenImages) {
		slog.InfoContext(ctx, "chaos: broken image", "file", filename)
		return ErrAssetNotFound
	}

	if s.faults.IsEnabled(ctx, faults.SlowImages) {
		slog.InfoContext(ctx, "chaos: slow image", "file", filename, "delay", s.slowDelay)
		s.sleep(s.slowDelay)
	}

	if !fs.ValidPath(filename) || strings.Contains(filename, "/") || filename == "." {
		return ErrAssetNotFound
	}

	info, err := fs.Stat(s.files, filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrAssetNotFound
		}
		return fmt.Errorf("stat image %s: %w", filename, err)
	}
	if info.IsDir() {
		return ErrAssetNotFound
	}

	http.ServeFileFS(w, r, s.files, filename)
	return nil
}
