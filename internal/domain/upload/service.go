// Package upload stores the tenant logo on the local filesystem.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/pkg/logger"
)

// DefaultMaxSize is the logo size limit when none is configured.
const DefaultMaxSize = 2 << 20

var extensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/svg+xml": ".svg",
}

// Logo describes a stored logo.
type Logo struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type Service struct {
	dir     string
	maxSize int64
	policy  *security.Policy
}

func NewService(dir string, maxSize int64, policy *security.Policy) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{dir: dir, maxSize: maxSize, policy: policy}
}

// SaveLogo replaces the tenant logo. The type is taken from the content, not
// from the client's file name.
func (s *Service) SaveLogo(ctx context.Context, r io.Reader) (*Logo, error) {
	if err := s.policy.Authorize(ctx, security.CapUpload, nil); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	if len(data) == 0 {
		return nil, apperror.NewValidation("no file provided").WithCode("FILE_REQUIRED")
	}
	if int64(len(data)) > s.maxSize {
		return nil, apperror.NewValidation("file too large").
			WithCode("FILE_TOO_LARGE").
			WithDetail("max_size", s.maxSize)
	}
	contentType := Sniff(data)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, apperror.NewValidation("only png, jpeg and svg images are accepted").
			WithCode("INVALID_FILE_TYPE").
			WithDetail("content_type", contentType)
	}

	dir, err := s.tenantDir(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	// Only one logo per tenant, whatever its extension.
	for _, other := range extensions {
		if other != ext {
			_ = os.Remove(filepath.Join(dir, "logo"+other))
		}
	}

	name := "logo" + ext
	tmp, err := os.CreateTemp(dir, ".logo-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write logo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close logo: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return nil, fmt.Errorf("store logo: %w", err)
	}

	logger.Info(ctx, "logo uploaded", "filename", name, "size", len(data))
	return &Logo{
		Filename:    name,
		Path:        "/api/upload/logo",
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// LogoPath returns the file of the tenant logo and its content type.
func (s *Service) LogoPath(ctx context.Context) (string, string, error) {
	dir, err := s.tenantDir(ctx)
	if err != nil {
		return "", "", err
	}
	for contentType, ext := range extensions {
		p := filepath.Join(dir, "logo"+ext)
		_, err := os.Stat(p)
		if err == nil {
			return p, contentType, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("stat logo: %w", err)
		}
	}
	return "", "", apperror.NewNotFound("logo", "logo")
}

func (s *Service) tenantDir(ctx context.Context) (string, error) {
	tenantID := tenant.GetTenantID(ctx)
	if tenantID == "" || strings.ContainsAny(tenantID, `/\.`) {
		return "", apperror.NewValidation("tenant required").WithCode("TENANT_REQUIRED")
	}
	return filepath.Join(s.dir, tenantID), nil
}

// Sniff detects the content type of an image, recognizing SVG documents
// that http.DetectContentType reports as text.
func Sniff(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if ct == "image/png" || ct == "image/jpeg" {
		return ct
	}
	head := data[:min(len(data), 512)]
	trimmed := bytes.TrimSpace(head)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<svg")) {
		if bytes.Contains(bytes.ToLower(head), []byte("<svg")) {
			return "image/svg+xml"
		}
	}
	return ct
}
