package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ragkb-chat/core/internal/rag"
)

// streamPrinter writes the answer being generated as it grows. Snapshots may
// arrive out of order or late; only ones extending what was already printed
// for the current request are used.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	active  bool
	after   uint64
	printed string
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

func (p *streamPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// begin accepts snapshots of requests newer than generation after.
func (p *streamPrinter) begin(after uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.after = after
	p.printed = ""
}

func (p *streamPrinter) observe(s rag.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || s.Chat.Generation <= p.after || !s.Chat.Writing {
		return
	}
	msgs := s.Chat.Messages
	if len(msgs) == 0 {
		return
	}
	c := msgs[len(msgs)-1].Content
	if len(c) > len(p.printed) && strings.HasPrefix(c, p.printed) {
		fmt.Fprint(p.w, c[len(p.printed):])
		p.printed = c
	}
}

// finish prints whatever of final was not streamed yet.
func (p *streamPrinter) finish(final string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	if strings.HasPrefix(final, p.printed) {
		fmt.Fprint(p.w, final[len(p.printed):])
	} else {
		fmt.Fprint(p.w, "\n"+final)
	}
	fmt.Fprintln(p.w)
}

// abort ends the current answer with a note.
func (p *streamPrinter) abort(note string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	if p.printed != "" {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w, note)
}
