package media_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/media"
)

type MockHost struct {
	mock.Mock
}

func (m *MockHost) Upload(ctx context.Context, file media.File, folder string) (*media.Asset, error) {
	args := m.Called(ctx, file, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.Asset), args.Error(1)
}

var png = media.File{Name: "hero.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

func TestUpload_InlinePreviewWithoutHost(t *testing.T) {
	svc, err := media.NewService(config.CloudinaryConfig{CloudName: "demo"})
	require.NoError(t, err)

	res, err := svc.Upload(context.Background(), png, "")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "local-preview", res.Provider)
	assert.Equal(t, "hero.png", res.FileName)
	assert.Equal(t, 4, res.Size)
	assert.Equal(t, "data:image/png;base64,iVBORw==", res.URL)
}

func TestUpload_HostDefaultsFolder(t *testing.T) {
	host := new(MockHost)
	svc := media.NewServiceWithHost(host, "")

	host.On("Upload", mock.Anything, png, media.DefaultFolder).Return(&media.Asset{
		URL:      "https://res.cloudinary.com/demo/image/upload/v1/deedees-health/hero.png",
		PublicID: "deedees-health/hero",
		Width:    1600,
		Height:   900,
		Format:   "png",
	}, nil).Once()

	res, err := svc.Upload(context.Background(), png, "")
	require.NoError(t, err)
	assert.Equal(t, &media.Result{
		Success:  true,
		Provider: "cloudinary",
		URL:      "https://res.cloudinary.com/demo/image/upload/v1/deedees-health/hero.png",
		PublicID: "deedees-health/hero",
		Width:    1600,
		Height:   900,
		Format:   "png",
	}, res)
	host.AssertExpectations(t)
}

func TestUpload_HostFailure(t *testing.T) {
	host := new(MockHost)
	svc := media.NewServiceWithHost(host, "products")

	host.On("Upload", mock.Anything, png, "banners").Return(nil, errors.New("Invalid image file")).Once()

	_, err := svc.Upload(context.Background(), png, "banners")
	require.ErrorIs(t, err, media.ErrUploadFailed)
	assert.Contains(t, err.Error(), "Invalid image file")
}

func TestUpload_RejectsEmptyAndOversized(t *testing.T) {
	host := new(MockHost)
	svc := media.NewServiceWithHost(host, "")

	_, err := svc.Upload(context.Background(), media.File{Name: "empty.png"}, "")
	assert.ErrorIs(t, err, media.ErrNoFile)

	big := media.File{Name: "big.jpg", MimeType: "image/jpeg", Data: bytes.Repeat([]byte{1}, media.MaxUploadSize+1)}
	_, err = svc.Upload(context.Background(), big, "")
	assert.ErrorIs(t, err, media.ErrFileTooLarge)

	host.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestNewService_Cloudinary(t *testing.T) {
	svc, err := media.NewService(config.CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
