package http

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageInfo describes an image reached by following its URL
type ImageInfo struct {
	URL         string
	ContentType string
	Size        int
	Format      string // empty when the bytes are not a decodable image
	Width       int
	Height      int
}

// ProbeImage fetches imageURL and decodes its header to report dimensions.
// Failures are returned to the caller, which renders them as a broken image.
func (c *Client) ProbeImage(ctx context.Context, imageURL string) (*ImageInfo, error) {
	img, err := c.FetchImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	info := &ImageInfo{
		URL:         imageURL,
		ContentType: img.ContentType,
		Size:        len(img.Data),
	}

	if cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data)); err == nil {
		info.Format = format
		info.Width = cfg.Width
		info.Height = cfg.Height
	}

	return info, nil
}
