package webserver

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePair(t *testing.T, dir string, serial int64, mtime time.Time) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "bandgov.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	require.NoError(t, os.Chtimes(certFile, mtime, mtime))
	require.NoError(t, os.Chtimes(keyFile, mtime, mtime))
	return certFile, keyFile
}

func serialOf(t *testing.T, w *CertWatcher) int64 {
	t.Helper()
	cert, err := w.GetCertificate(nil)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf.SerialNumber.Int64()
}

func TestCertWatcherReloadsChangedFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	certFile, keyFile := writePair(t, dir, 1, base)

	w, err := NewCertWatcher(ctx, certFile, keyFile, time.Hour, logging.Discard())
	require.NoError(t, err)
	assert.EqualValues(t, 1, serialOf(t, w))
	assert.NotNil(t, w.TLSConfig().GetCertificate)

	w.refresh()
	assert.EqualValues(t, 1, serialOf(t, w), "unchanged files are not reloaded")

	writePair(t, dir, 2, base.Add(time.Minute))
	w.refresh()
	assert.EqualValues(t, 2, serialOf(t, w))

	require.NoError(t, os.WriteFile(keyFile, []byte("garbage"), 0o600))
	w.refresh()
	assert.EqualValues(t, 2, serialOf(t, w), "a broken pair keeps the old certificate")
}

func TestCertWatcherMissingFiles(t *testing.T) {
	_, err := NewCertWatcher(context.Background(), "/nonexistent/cert.pem", "/nonexistent/key.pem", time.Hour, logging.Discard())
	assert.Error(t, err)
}
