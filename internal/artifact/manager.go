// SPDX-License-Identifier: MIT

// Package artifact manages the per-user QR code image files. Artifact
// lifecycle is deliberately decoupled from session record mutation so that
// cleanup can be retried independently of state-machine correctness.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	qrcode "github.com/skip2/go-qrcode"

	wplog "github.com/vurafps/Webpanel/internal/log"
)

// ErrWrite marks an encoder or storage failure while persisting a QR image.
// Callers surface it as a per-session error state; it is never fatal to the
// process.
var ErrWrite = errors.New("qr artifact write failed")

// Encoder renders challenge data into PNG bytes. The default is the
// standard QR encoder; tests inject a stub.
type Encoder func(data string) ([]byte, error)

// PNGEncoder encodes data as a 256x256 QR PNG.
func PNGEncoder(data string) ([]byte, error) {
	return qrcode.Encode(data, qrcode.Medium, 256)
}

// Manager owns the QR root directory. One image per username at a
// deterministic path, served read-only under the matching public prefix.
type Manager struct {
	root   string
	encode Encoder
}

func NewManager(root string, encode Encoder) *Manager {
	if encode == nil {
		encode = PNGEncoder
	}
	return &Manager{root: root, encode: encode}
}

// Root returns the QR root directory.
func (m *Manager) Root() string { return m.root }

// Path returns the filesystem path of a user's QR image.
func (m *Manager) Path(username string) string {
	return filepath.Join(m.root, username+".png")
}

// PublicPath returns the URL path at which the artifact is served.
func (m *Manager) PublicPath(username string) string {
	return "/qr/" + username + ".png"
}

// WriteQR encodes rawData and persists it at the user's deterministic path,
// overwriting any prior artifact. The write is atomic and durable: a crash
// mid-write never leaves a truncated image behind.
func (m *Manager) WriteQR(username, rawData string) (string, error) {
	png, err := m.encode(rawData)
	if err != nil {
		return "", fmt.Errorf("%w: encode for %q: %v", ErrWrite, username, err)
	}

	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return "", fmt.Errorf("%w: qr dir: %v", ErrWrite, err)
	}

	path := m.Path(username)
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: create pending file: %v", ErrWrite, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger := wplog.WithComponent("artifact")
			logger.Debug().Err(err).Msg("cleanup pending qr file")
		}
	}()

	if _, err := pending.Write(png); err != nil {
		return "", fmt.Errorf("%w: write png: %v", ErrWrite, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("%w: atomically replace: %v", ErrWrite, err)
	}
	return path, nil
}

// DeleteQR removes the user's artifact if present. Removing an absent
// artifact is a no-op, so cleanup paths can call it unconditionally.
func (m *Manager) DeleteQR(username string) error {
	err := os.Remove(m.Path(username))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete qr for %q: %w", username, err)
	}
	return nil
}
