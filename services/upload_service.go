package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"food-share-server/config"
	applog "food-share-server/logger"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// UploadResult describes a stored image
type UploadResult struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Storage     string `json:"storage"`
}

// UploadService validates listing images and stores them on Cloudinary.
// Without Cloudinary credentials images are returned inline as data URLs.
type UploadService struct {
	cld      *cloudinary.Cloudinary
	folder   string
	maxBytes int
}

func NewUploadService(cfg config.UploadConfig) (*UploadService, error) {
	s := &UploadService{folder: cfg.Folder, maxBytes: cfg.MaxBytes}
	if cfg.CloudinaryURL == "" {
		applog.Log.Warn("⚠️ CLOUDINARY_URL not set, images are returned as data URLs")
		return s, nil
	}

	cld, err := cloudinary.NewFromURL(cfg.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	s.cld = cld
	return s, nil
}

// Upload accepts a base64 image, raw or as a data URL
func (s *UploadService) Upload(ctx context.Context, encoded string) (*UploadResult, error) {
	data, err := decodeImage(encoded)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return nil, fmt.Errorf("%w: file size exceeds %dMB limit", ErrInvalidImage, s.maxBytes/(1024*1024))
	}

	contentType := http.DetectContentType(data)
	if !allowedImageTypes[contentType] {
		return nil, fmt.Errorf("%w: only JPG, PNG and WebP images are allowed", ErrInvalidImage)
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	result := &UploadResult{
		URL:         dataURL,
		ContentType: contentType,
		Size:        len(data),
		Storage:     "inline",
	}
	if s.cld == nil {
		return result, nil
	}

	uploaded, err := s.cld.Upload.Upload(ctx, dataURL, uploader.UploadParams{
		Folder:   s.folder,
		PublicID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	if uploaded.Error.Message != "" {
		return nil, fmt.Errorf("failed to upload image: %s", uploaded.Error.Message)
	}

	applog.Log.WithField("public_id", uploaded.PublicID).Info("✅ Image uploaded to Cloudinary")
	result.URL = uploaded.SecureURL
	result.Storage = "cloudinary"
	return result, nil
}

func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 || !strings.HasSuffix(encoded[:comma], ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		encoded = encoded[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, fmt.Errorf("%w: invalid base64 data", ErrInvalidImage)
		}
	}
	return data, nil
}
