package backend

import "context"

// Client exposes each backend verb as a method.
type Client struct {
	b Backend
}

// NewClient wraps b.
func NewClient(b Backend) *Client {
	return &Client{b: b}
}

// List returns the raw listing of dir.
func (c *Client) List(ctx context.Context, dir string) (string, error) {
	return c.b.Run(ctx, VerbList, dir)
}

// Download copies remote to local. An empty local lets the backend pick the
// destination (the basename in its working directory).
func (c *Client) Download(ctx context.Context, remote, local string) (string, error) {
	if local == "" {
		return c.b.Run(ctx, VerbDownload, remote)
	}
	return c.b.Run(ctx, VerbDownload, remote, local)
}

// Upload copies local to remote. A trailing "/" on remote means "into this
// directory" and is passed through unchanged.
func (c *Client) Upload(ctx context.Context, local, remote string) (string, error) {
	return c.b.Run(ctx, VerbUpload, local, remote)
}

// Move renames src to dst.
func (c *Client) Move(ctx context.Context, src, dst string) (string, error) {
	return c.b.Run(ctx, VerbMove, src, dst)
}

// Delete removes path.
func (c *Client) Delete(ctx context.Context, path string) (string, error) {
	return c.b.Run(ctx, VerbDelete, path)
}

// Mkdir creates the directory path.
func (c *Client) Mkdir(ctx context.Context, path string) (string, error) {
	return c.b.Run(ctx, VerbMkdir, path)
}
