package upload_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/upload"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

const svgDoc = `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"></svg>`

func ctxAs(role string) context.Context {
	ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "acme"})
	return appctx.WithUser(ctx, &appctx.UserContext{UserID: "u1", Role: role})
}

func TestSaveLogo(t *testing.T) {
	dir := t.TempDir()
	svc := upload.NewService(dir, 1024, security.DefaultPolicy())
	ctx := ctxAs("admin")

	logo, err := svc.SaveLogo(ctx, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "logo.png", logo.Filename)
	assert.Equal(t, "image/png", logo.ContentType)
	assert.FileExists(t, filepath.Join(dir, "acme", "logo.png"))

	p, ct, err := svc.LogoPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, filepath.Join(dir, "acme", "logo.png"), p)

	// Replacing with an SVG removes the PNG.
	logo, err = svc.SaveLogo(ctx, bytes.NewReader([]byte(svgDoc)))
	require.NoError(t, err)
	assert.Equal(t, "logo.svg", logo.Filename)
	assert.NoFileExists(t, filepath.Join(dir, "acme", "logo.png"))

	entries, err := os.ReadDir(filepath.Join(dir, "acme"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveLogo_Rejections(t *testing.T) {
	svc := upload.NewService(t.TempDir(), 32, security.DefaultPolicy())

	_, err := svc.SaveLogo(ctxAs("tc"), bytes.NewReader(pngHeader))
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))

	_, err = svc.SaveLogo(ctxAs("admin"), bytes.NewReader(nil))
	assert.True(t, apperror.HasCode(err, "FILE_REQUIRED"))

	_, err = svc.SaveLogo(ctxAs("admin"), bytes.NewReader(bytes.Repeat([]byte{0x89}, 33)))
	assert.True(t, apperror.HasCode(err, "FILE_TOO_LARGE"))

	_, err = svc.SaveLogo(ctxAs("admin"), bytes.NewReader([]byte("GIF89a.......")))
	assert.True(t, apperror.HasCode(err, "INVALID_FILE_TYPE"))
}

func TestLogoPath_Missing(t *testing.T) {
	svc := upload.NewService(t.TempDir(), 0, security.DefaultPolicy())
	_, _, err := svc.LogoPath(ctxAs("admin"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestSniff(t *testing.T) {
	assert.Equal(t, "image/png", upload.Sniff(pngHeader))
	assert.Equal(t, "image/jpeg", upload.Sniff([]byte("\xff\xd8\xff\xe0\x00\x10JFIF")))
	assert.Equal(t, "image/svg+xml", upload.Sniff([]byte("<svg viewBox='0 0 1 1'/>")))
	assert.NotEqual(t, "image/svg+xml", upload.Sniff([]byte("<?xml version='1.0'?><note/>")))
}
