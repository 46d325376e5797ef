package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"dmfeed/pkg/models"
)

func formatMessage(m models.Message, now time.Time) string {
	body := m.Text
	switch {
	case m.Deleted:
		body = "(deleted)"
	case m.ImageURL != "":
		body = strings.TrimSpace(body + " [image " + m.ImageURL + "]")
	}
	if m.Edited && !m.Deleted {
		body += " (edited)"
	}
	when := humanize.RelTime(time.Unix(0, m.Timestamp), now, "ago", "from now")
	return fmt.Sprintf("%-14s %-12s %s  [%s]", when, m.SenderID, body, m.ID)
}

// printer writes each message of a rendered window once, and again when
// it changes (edit or delete).
type printer struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]models.Message
	now  func() time.Time
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, seen: map[string]models.Message{}, now: time.Now}
}

func (p *printer) render(window []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for _, m := range window {
		if prev, ok := p.seen[m.ID]; ok && prev == m {
			continue
		}
		p.seen[m.ID] = m
		fmt.Fprintln(p.out, formatMessage(m, now))
	}
}
