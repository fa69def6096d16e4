package catalog

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/fjod/chaos-shop/internal/apperr"
	"github.com/fjod/chaos-shop/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFS records every Open so tests can prove a path never touched disk.
type countingFS struct {
	fstest.MapFS
	opens int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.opens++
	return c.MapFS.Open(name)
}

func newTestAssets(checker faults.Checker) (*AssetServer, *countingFS, *[]time.Duration) {
	files := &countingFS{MapFS: fstest.MapFS{
		"wool-coat.jpg": {Data: []byte("jpeg-bytes")},
		"nested":        {Mode: fs.ModeDir},
	}}
	var slept []time.Duration
	s := newAssetServer(files, checker, 2*time.Second, func(d time.Duration) {
		slept = append(slept, d)
	})
	return s, files, &slept
}

func serveImage(t *testing.T, s *AssetServer, name string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, ImageURL(name), nil)
	rec := httptest.NewRecorder()
	return rec, s.Serve(rec, req, name)
}

func TestServe_ExistingFile(t *testing.T) {
	s, _, slept := newTestAssets(newStubChecker())

	rec, err := serveImage(t, s, "wool-coat.jpg")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
	assert.Empty(t, *slept)
}

func TestServe_MissingFile(t *testing.T) {
	s, _, _ := newTestAssets(newStubChecker())

	_, err := serveImage(t, s, "nope.jpg")
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(err))
}

func TestServe_RejectsNonElementNames(t *testing.T) {
	s, _, _ := newTestAssets(newStubChecker())

	for _, name := range []string{"../wool-coat.jpg", "nested/wool-coat.jpg", "", ".", "nested"} {
		_, err := serveImage(t, s, name)
		assert.ErrorIs(t, err, ErrAssetNotFound, "name %q", name)
	}
}

func TestServe_PermissionErrorBeforeFilesystem(t *testing.T) {
	// permission wins even when the other flags are on
	s, files, slept := newTestAssets(newStubChecker(faults.ImagePermission, faults.BrokenImages, faults.SlowImages))

	for _, name := range []string{"wool-coat.jpg", "nope.jpg"} {
		_, err := serveImage(t, s, name)
		assert.ErrorIs(t, err, ErrSimulatedPermission)
		assert.ErrorIs(t, err, fs.ErrPermission)
		assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
	}
	assert.Zero(t, files.opens)
	assert.Empty(t, *slept)
}

func TestServe_BrokenImagesAlwaysNotFound(t *testing.T) {
	s, files, slept := newTestAssets(newStubChecker(faults.BrokenImages, faults.SlowImages))

	_, err := serveImage(t, s, "wool-coat.jpg")
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.Zero(t, files.opens)
	assert.Empty(t, *slept)
}

func TestServe_SlowImagesSleepsThenServes(t *testing.T) {
	s, _, slept := newTestAssets(newStubChecker(faults.SlowImages))

	rec, err := serveImage(t, s, "wool-coat.jpg")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)

	// the delay applies to missing files too
	_, err = serveImage(t, s, "nope.jpg")
	assert.ErrorIs(t, err, ErrAssetNotFound)
	assert.Len(t, *slept, 2)
}

func TestNewAssetServer_DefaultDelay(t *testing.T) {
	s := NewAssetServer(t.TempDir(), newStubChecker(), 0)
	assert.Equal(t, 3*time.Second, s.slowDelay)
}
