// Package media relays admin image uploads to the media host, or returns an
// inline preview when no host is configured.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
)

const (
	MaxUploadSize = 8 << 20
	DefaultFolder = "deedees-health"
)

var (
	ErrNoFile       = errors.New("no file provided")
	ErrFileTooLarge = errors.New("file exceeds the upload limit")
	ErrUploadFailed = errors.New("image upload failed")
)

type File struct {
	Name     string
	MimeType string
	Data     []byte
}

type Result struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int    `json:"size,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Asset is what the host reports back after storing a file.
type Asset struct {
	URL      string
	PublicID string
	Width    int
	Height   int
	Format   string
}

type Host interface {
	Upload(ctx context.Context, file File, folder string) (*Asset, error)
}

type Service interface {
	Upload(ctx context.Context, file File, folder string) (*Result, error)
}

type service struct {
	host          Host
	defaultFolder string
}

// NewService picks Cloudinary when all three credentials are present and the
// inline preview otherwise.
func NewService(cfg config.CloudinaryConfig) (Service, error) {
	folder := cfg.Folder
	if folder == "" {
		folder = DefaultFolder
	}
	if !cfg.Configured() {
		log.Warn().Msg("media: cloudinary credentials missing, uploads return inline previews")
		return NewServiceWithHost(nil, folder), nil
	}

	host, err := NewCloudinaryHost(cfg)
	if err != nil {
		return nil, err
	}
	return NewServiceWithHost(host, folder), nil
}

// NewServiceWithHost wires an explicit host; nil means inline previews.
func NewServiceWithHost(host Host, defaultFolder string) Service {
	if defaultFolder == "" {
		defaultFolder = DefaultFolder
	}
	return &service{host: host, defaultFolder: defaultFolder}
}

func (s *service) Upload(ctx context.Context, file File, folder string) (*Result, error) {
	if len(file.Data) == 0 {
		return nil, ErrNoFile
	}
	if len(file.Data) > MaxUploadSize {
		return nil, ErrFileTooLarge
	}
	if folder == "" {
		folder = s.defaultFolder
	}

	if s.host == nil {
		return &Result{
			Success:  true,
			Provider: "local-preview",
			FileName: file.Name,
			MimeType: file.MimeType,
			Size:     len(file.Data),
			URL:      "data:" + file.MimeType + ";base64," + base64.StdEncoding.EncodeToString(file.Data),
			Message:  "Cloudinary env vars missing, returning base64 preview instead.",
		}, nil
	}

	asset, err := s.host.Upload(ctx, file, folder)
	if err != nil {
		log.Error().Err(err).Str("file_name", file.Name).Str("folder", folder).Msg("media: upload to host failed")
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	log.Info().Str("public_id", asset.PublicID).Str("folder", folder).Msg("media: image uploaded")
	return &Result{
		Success:  true,
		Provider: "cloudinary",
		URL:      asset.URL,
		PublicID: asset.PublicID,
		Width:    asset.Width,
		Height:   asset.Height,
		Format:   asset.Format,
	}, nil
}

type cloudinaryHost struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryHost(cfg config.CloudinaryConfig) (Host, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("media: failed to configure cloudinary: %w", err)
	}
	return &cloudinaryHost{cld: cld}, nil
}

func (h *cloudinaryHost) Upload(ctx context.Context, file File, folder string) (*Asset, error) {
	res, err := h.cld.Upload.Upload(ctx, bytes.NewReader(file.Data), uploader.UploadParams{Folder: folder})
	if err != nil {
		return nil, err
	}
	if res.Error.Message != "" {
		return nil, errors.New(res.Error.Message)
	}
	return &Asset{
		URL:      res.SecureURL,
		PublicID: res.PublicID,
		Width:    res.Width,
		Height:   res.Height,
		Format:   res.Format,
	}, nil
}
