package webserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// CertWatcher serves the current certificate pair and swaps it in place when
// either file changes on disk, so renewals need no restart.
type CertWatcher struct {
	certFile string
	keyFile  string
	logger   *log.Logger

	mu      sync.RWMutex
	current *tls.Certificate
	stamp   string
}

// NewCertWatcher loads the pair and polls it every interval until ctx is done.
func NewCertWatcher(ctx context.Context, certFile, keyFile string, interval time.Duration, logger *log.Logger) (*CertWatcher, error) {
	w := &CertWatcher{certFile: certFile, keyFile: keyFile, logger: logger}
	stamp, err := w.fileStamp()
	if err != nil {
		return nil, err
	}
	if err := w.load(stamp); err != nil {
		return nil, err
	}
	go w.poll(ctx, interval)
	return w, nil
}

// fileStamp identifies the on-disk revision of both files.
func (w *CertWatcher) fileStamp() (string, error) {
	cert, err := os.Stat(w.certFile)
	if err != nil {
		return "", fmt.Errorf("stat certificate: %w", err)
	}
	key, err := os.Stat(w.keyFile)
	if err != nil {
		return "", fmt.Errorf("stat key: %w", err)
	}
	return fmt.Sprintf("%d/%d:%d/%d", cert.ModTime().UnixNano(), cert.Size(), key.ModTime().UnixNano(), key.Size()), nil
}

func (w *CertWatcher) load(stamp string) error {
	pair, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("load certificate pair: %w", err)
	}
	w.mu.Lock()
	w.current = &pair
	w.stamp = stamp
	w.mu.Unlock()
	w.logger.Info("tls certificate loaded", "cert", w.certFile)
	return nil
}

// refresh reloads the pair when the files changed since the last load. A
// broken pair keeps the previous certificate in service.
func (w *CertWatcher) refresh() {
	stamp, err := w.fileStamp()
	if err != nil {
		w.logger.Warn("tls certificate check failed", "err", err)
		return
	}
	w.mu.RLock()
	same := stamp == w.stamp
	w.mu.RUnlock()
	if same {
		return
	}
	if err := w.load(stamp); err != nil {
		w.logger.Error("tls certificate reload failed, keeping the old one", "err", err)
	}
}

func (w *CertWatcher) poll(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.refresh()
		}
	}
}

// GetCertificate implements tls.Config.GetCertificate.
func (w *CertWatcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current, nil
}

// TLSConfig returns a server config backed by the watcher.
func (w *CertWatcher) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
