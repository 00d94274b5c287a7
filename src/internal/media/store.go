// Package media stores uploaded recipe images on disk.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/casapps/casrecipes/src/internal/errors"
)

const recipesDir = "recipes"

// Store writes images under root and serves them below urlPrefix
type Store struct {
	root         string
	urlPrefix    string
	maxDimension int
	maxBytes     int
}

// NewStore creates a new image store from the media.* settings
func NewStore(cfg *viper.Viper) *Store {
	return &Store{
		root:         cfg.GetString("media.path"),
		urlPrefix:    strings.TrimRight(cfg.GetString("media.url_prefix"), "/"),
		maxDimension: cfg.GetInt("media.max_dimension"),
		maxBytes:     cfg.GetInt("media.max_upload_bytes"),
	}
}

// Root is the directory images are written to
func (s *Store) Root() string {
	return s.root
}

// URLPrefix is the public path images are served under
func (s *Store) URLPrefix() string {
	return s.urlPrefix
}

func invalidImage() error {
	return errors.NewValidationError("Upload a valid image.", "image")
}

// decodeDataURI splits "data:image/png;base64,<payload>" into its format
// and decoded bytes
func decodeDataURI(data string) (string, []byte, error) {
	header, payload, ok := strings.Cut(data, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return "", nil, invalidImage()
	}

	format := strings.TrimSuffix(strings.TrimPrefix(header, "data:image/"), ";base64")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, invalidImage()
	}
	return strings.ToLower(format), raw, nil
}

// SaveBase64 decodes a data URI image, shrinks it to fit the maximum
// dimension and returns its public URL
func (s *Store) SaveBase64(ctx context.Context, data string) (string, error) {
	format, raw, err := decodeDataURI(data)
	if err != nil {
		return "", err
	}
	if s.maxBytes > 0 && len(raw) > s.maxBytes {
		return "", errors.NewValidationError(fmt.Sprintf("Image must not exceed %d bytes.", s.maxBytes), "image")
	}

	ext := "." + format
	if format == "jpg" {
		ext = ".jpeg"
	}
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return "", invalidImage()
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", invalidImage()
	}
	img = s.fit(img)

	dir := filepath.Join(s.root, recipesDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.StorageError("save_image", "failed to create media directory", err)
	}

	name := uuid.New().String() + ext
	if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
		return "", errors.StorageError("save_image", "failed to store image", err)
	}

	return path.Join(s.urlPrefix, recipesDir, name), nil
}

func (s *Store) fit(img image.Image) image.Image {
	if s.maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= s.maxDimension && b.Dy() <= s.maxDimension {
		return img
	}
	return imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
}

// Remove deletes the file behind a URL returned by SaveBase64. Unknown or
// already removed files are ignored.
func (s *Store) Remove(url string) error {
	name := strings.TrimPrefix(url, s.urlPrefix+"/"+recipesDir+"/")
	if name == url || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}

	err := os.Remove(filepath.Join(s.root, recipesDir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
