package media

import (
	"context"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rotisserie/eris"
)

// CloudinarySettings selects the account and folder images are uploaded to. URL takes
// precedence over the individual credentials.
type CloudinarySettings struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Cloudinary is the CDN backed by a Cloudinary account.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

var _ CDN = (*Cloudinary)(nil)

// NewCloudinary connects to the account described by settings.
func NewCloudinary(settings CloudinarySettings) (*Cloudinary, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)

	switch {
	case settings.URL != "":
		cld, err = cloudinary.NewFromURL(settings.URL)
	case settings.CloudName != "" && settings.APIKey != "" && settings.APISecret != "":
		cld, err = cloudinary.NewFromParams(settings.CloudName, settings.APIKey, settings.APISecret)
	default:
		return nil, eris.New("cloudinary credentials are required")
	}
	if err != nil {
		return nil, eris.Wrap(err, "initialising cloudinary client")
	}

	return &Cloudinary{cld: cld, folder: settings.Folder}, nil
}

// Upload stores the image under a unique public id in the configured folder.
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader) (Asset, error) {
	result, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:         c.folder,
		UniqueFilename: api.Bool(true),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return Asset{}, eris.Wrap(err, "uploading image to cloudinary")
	}
	if result.Error.Message != "" {
		return Asset{}, eris.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}
	if result.SecureURL == "" {
		return Asset{}, eris.New("cloudinary returned no URL")
	}

	return Asset{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

// Destroy removes the image. An image that is already gone counts as removed.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	result, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return eris.Wrapf(err, "destroying cloudinary image %s", publicID)
	}
	if result.Error.Message != "" {
		return eris.Errorf("cloudinary rejected destroy of %s: %s", publicID, result.Error.Message)
	}

	switch result.Result {
	case "ok", "not found":
		return nil
	default:
		return eris.Errorf("cloudinary destroy of %s returned %q", publicID, result.Result)
	}
}
