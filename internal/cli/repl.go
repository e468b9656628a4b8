package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ragkb-chat/core/internal/chat"
	errx "github.com/ragkb-chat/core/internal/core/error"
	"github.com/ragkb-chat/core/internal/filter"
	"github.com/ragkb-chat/core/internal/rag"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

var errNothingToSave = errors.New("nothing to save")

const replHelp = `commands:
  <text>                         ask the knowledge base
  /retry                         regenerate the last answer
  /edit <text>                   replace the last question and regenerate
  /stop                          stop the answer being generated
  /reset                         start a new conversation
  /raw                           toggle showing the system context
  /filter <key> <op|-> <v1,v2>   set a filter ("-" uses the filter key)
  /unfilter <key>                clear a filter
  /model [id]                    list or switch models
  /system [text]                 show or replace the system context
  /presets                       list saved system contexts
  /use <id>                      apply a saved system context
  /save <title> [= <content>]    save the active system context, or content
  /keep <n> <title>              save message n (see /raw) as a system context
  /rename <id> <title>           rename a saved system context
  /delete <id>                   delete a saved system context
  /quit                          exit
`

// repl drives an orchestrator from text commands. Generations run in the
// background so /stop stays available.
type repl struct {
	s   *rag.Orchestrator
	out *streamPrinter
	wg  sync.WaitGroup
}

func newREPL(s *rag.Orchestrator, out *streamPrinter) *repl {
	return &repl{s: s, out: out}
}

// wait blocks until the running generation, if any, returns.
func (r *repl) wait() { r.wg.Wait() }

// generate starts a request synchronously, so the next line already sees the
// conversation loading, and waits for its answer in the background.
func (r *repl) generate(start func() (*chat.Pending, error)) error {
	p, err := start()
	if err != nil {
		return err
	}
	r.out.begin(p.Generation())
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		res, err := p.Wait()
		switch {
		case err == nil:
			r.out.finish(res.Content)
		case errors.Is(err, chat.ErrStopped):
			r.out.abort("[stopped]")
		default:
			r.out.abort("error: " + err.Error())
		}
	}()
	return nil
}

// handle executes one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.send(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	busy := r.s.Conversation().State().Loading
	if busy && cmd != "/stop" && cmd != "/quit" && cmd != "/help" {
		return false, chat.ErrBusy
	}

	switch cmd {
	case "/quit", "/exit":
		r.s.Stop(ctx)
		return true, nil
	case "/help":
		r.out.printf("%s", replHelp)
	case "/retry":
		return false, r.generate(func() (*chat.Pending, error) {
			return r.s.StartRetry(ctx)
		})
	case "/edit":
		if arg == "" {
			return false, chat.ErrEmptyContent
		}
		idx := len(r.s.Conversation().Messages()) - 2
		return false, r.generate(func() (*chat.Pending, error) {
			return r.s.StartEdit(ctx, idx, arg)
		})
	case "/stop":
		r.s.Stop(ctx)
	case "/reset":
		r.s.Reset()
		r.out.printf("conversation reset\n")
	case "/raw":
		show := !r.s.State().ShowSystemContext
		r.s.SetShowSystemContext(show)
		r.printMessages()
	case "/filter":
		return false, r.setFilter(arg)
	case "/unfilter":
		if err := r.s.SetFilter(arg, nil); err != nil {
			return false, err
		}
		r.printFilters()
	case "/model":
		if arg == "" {
			r.printModels()
			return false, nil
		}
		if err := r.s.SetModel(ctx, arg); err != nil {
			return false, err
		}
		r.out.printf("model: %s\n", r.s.ModelID())
	case "/system":
		if arg == "" {
			r.out.printf("%s\n", r.s.Conversation().CurrentSystemContext())
			return false, nil
		}
		r.s.Presets().SetActive(arg)
		r.s.Presets().Apply()
	case "/presets":
		if err := r.s.Presets().Refetch(ctx); err != nil {
			return false, err
		}
		r.printPresets()
	case "/use":
		return false, r.s.UsePreset(arg)
	case "/save":
		title, content, custom := strings.Cut(arg, "=")
		if strings.TrimSpace(title) == "" {
			return false, fmt.Errorf("usage: /save <title> [= <content>]")
		}
		p := r.s.Presets()
		p.OpenSaveDialog()
		if custom {
			p.SetSaveContent(strings.TrimSpace(content))
		}
		return false, r.saveDialog(ctx, strings.TrimSpace(title))
	case "/keep":
		n, title, ok := strings.Cut(arg, " ")
		i, err := strconv.Atoi(n)
		if !ok || err != nil || strings.TrimSpace(title) == "" {
			return false, fmt.Errorf("usage: /keep <message number> <title>")
		}
		msgs := r.s.ShowingMessages()
		if i < 1 || i > len(msgs) {
			return false, fmt.Errorf("no message %d", i)
		}
		r.s.Presets().SaveFromMessage(msgs[i-1].Content)
		return false, r.saveDialog(ctx, strings.TrimSpace(title))
	case "/rename":
		id, title, ok := strings.Cut(arg, " ")
		if !ok || strings.TrimSpace(title) == "" {
			return false, fmt.Errorf("usage: /rename <id> <title>")
		}
		r.s.Presets().Rename(ctx, id, strings.TrimSpace(title))
		r.printPresets()
	case "/delete":
		if arg == "" {
			return false, fmt.Errorf("usage: /delete <id>")
		}
		r.s.Presets().Delete(ctx, arg)
		r.printPresets()
	default:
		return false, fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return false, nil
}

func (r *repl) send(ctx context.Context, content string) error {
	if r.s.Conversation().State().Loading {
		return chat.ErrBusy
	}
	prev := r.s.State().Content
	r.s.SetContent(content)
	err := r.generate(func() (*chat.Pending, error) {
		return r.s.StartSend(ctx)
	})
	if errors.Is(err, chat.ErrBusy) {
		r.s.SetContent(prev)
	}
	return err
}

// saveDialog titles and saves the open save dialog. A dialog with nothing to
// save is closed instead.
func (r *repl) saveDialog(ctx context.Context, title string) error {
	p := r.s.Presets()
	if strings.TrimSpace(p.State().SaveContent) == "" {
		p.CloseDialog()
		return errNothingToSave
	}
	p.SetSaveTitle(title)
	p.SaveDialog(ctx)
	r.printPresets()
	return nil
}

func (r *repl) setFilter(arg string) error {
	fields := strings.SplitN(arg, " ", 3)
	if len(fields) < 3 {
		return fmt.Errorf("usage: /filter <key> <op|-> <v1,v2>")
	}
	key, op, raw := fields[0], fields[1], fields[2]
	cfg, ok := filter.Find(r.s.FilterConfigurations(), key)
	if !ok {
		return fmt.Errorf("unknown filter %q", key)
	}
	if op == "-" {
		op = ""
	}
	sel, err := filter.ParseSelection(cfg, op, raw)
	if err != nil {
		return err
	}
	if err := r.s.SetFilter(key, sel); err != nil {
		return err
	}
	r.printFilters()
	return nil
}

func (r *repl) printMessages() {
	for i, m := range r.s.ShowingMessages() {
		r.out.printf("%d [%s] %s\n", i+1, m.Role, m.Content)
	}
}

func (r *repl) printFilters() {
	configs := r.s.FilterConfigurations()
	for i, sel := range r.s.Filters() {
		r.out.printf("  %s = %s\n", configs[i].Key, describeSelection(sel))
	}
}

func (r *repl) printModels() {
	cat := r.s.Catalog()
	for _, id := range cat.IDs() {
		marker := " "
		if id == r.s.ModelID() {
			marker = "*"
		}
		r.out.printf("%s %s (%s)\n", marker, id, cat.DisplayName(id))
	}
}

func (r *repl) printPresets() {
	presets := r.s.Presets().Presets()
	if len(presets) == 0 {
		r.out.printf("no saved system contexts\n")
		return
	}
	for _, p := range presets {
		r.out.printf("  %s  %s\n", p.ID, p.Title)
	}
}

func describeSelection(sel *filter.Selection) string {
	if sel == nil {
		return "(unset)"
	}
	vals := make([]string, 0, len(sel.Options))
	for _, o := range sel.Options {
		vals = append(vals, o.RawValue())
	}
	s := strings.Join(vals, ",")
	if sel.Operator != "" {
		s = sel.Operator + " " + s
	}
	return s
}

func logErr(err error, line string) {
	logx.Debug().Err(err).Int("status", errx.StatusOf(err)).Str("line", line).Msg("command failed")
}
