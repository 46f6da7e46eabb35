package email

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// DevSender writes each message as an RFC 5322 .eml file under dir instead
// of delivering it. The files open in any mail client.
type DevSender struct {
	dir string
	now func() time.Time
}

func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

func (d *DevSender) Send(_ context.Context, msg Message) error {
	m, err := compose(msg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	label := msg.Tag
	if label == "" {
		label = msg.Subject
	}
	name := fmt.Sprintf("%s_%s.eml", d.now().UTC().Format("20060102T150405.000000"), fileLabel(label))
	if err := m.WriteToFile(filepath.Join(d.dir, name)); err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	return nil
}

// fileLabel keeps letters, digits, dash, dot and underscore, lowercased and
// capped at 64 runes.
func fileLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if b.Len() >= 64 {
			break
		}
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.", r)):
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "message"
	}
	return b.String()
}
