package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/hearstlab/storyshare/internal/config"
)

// dialTimeout bounds the FTP control-connection setup.
const dialTimeout = 30 * time.Second

// FTPUploader pushes feed documents to the distribution FTP endpoint. A fresh
// connection per upload keeps the uploader stateless; delivery volume is a
// handful of documents per hour.
type FTPUploader struct {
	cfg config.FTPConfig
}

// NewFTPUploader builds an uploader for the configured FTP endpoint.
func NewFTPUploader(cfg config.FTPConfig) *FTPUploader {
	return &FTPUploader{cfg: cfg}
}

// Upload stores the document under the given filename.
func (u *FTPUploader) Upload(ctx context.Context, filename string, data []byte) error {
	conn, err := ftp.Dial(u.cfg.Host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to ftp endpoint: %w", err)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login(u.cfg.User, u.cfg.Password); err != nil {
		return fmt.Errorf("failed to log in to ftp endpoint: %w", err)
	}

	if err := conn.Stor(filename, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store %s: %w", filename, err)
	}
	return nil
}
