package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ragkb-chat/core/internal/chat"
	"github.com/ragkb-chat/core/internal/events"
	"github.com/ragkb-chat/core/internal/rag"
	logx "github.com/ragkb-chat/core/pkg/logger"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var entry rag.EntryParams
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive knowledge-base conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return runChat(ctx, cmd, app.Session, entry)
		},
	}
	cmd.Flags().StringVar(&entry.Content, "content", "", "question to ask right away")
	cmd.Flags().StringVar(&entry.ModelID, "model", "", "model id to start with")
	cmd.Flags().StringVar(&entry.SystemContext, "system-context", "", "system context to start with")
	return cmd
}

func runChat(ctx context.Context, cmd *cobra.Command, s *rag.Orchestrator, entry rag.EntryParams) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := newStreamPrinter(cmd.OutOrStdout())

	ps := events.NewPubSub()
	defer ps.Close()
	snapshots, err := events.Watch(ctx, ps, events.TopicState)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}
	detach := events.Bridge(s, ps, events.TopicState)
	defer detach()
	go func() {
		for snap := range snapshots {
			out.observe(snap)
		}
	}()

	if err := s.Presets().Refetch(ctx); err != nil {
		logx.Warn().Err(err).Msg("failed to load saved system contexts")
	}
	if err := s.ApplyEntryParams(ctx, entry); err != nil {
		return err
	}

	// piped input is answered line by line
	sequential := !isTerminal(cmd.InOrStdin())

	r := newREPL(s, out)
	out.printf("model %s, %d filters. /help for commands.\n", s.ModelID(), len(s.FilterConfigurations()))
	if pending := s.State().Content; pending != "" {
		out.printf("> %s\n", pending)
		if err := r.generate(func() (*chat.Pending, error) { return s.StartSend(ctx) }); err != nil {
			out.printf("error: %v\n", err)
		}
		if sequential {
			r.wait()
		}
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		quit, err := r.handle(ctx, line)
		if err != nil {
			logErr(err, line)
			out.printf("error: %v\n", err)
		}
		if quit {
			break
		}
		if sequential {
			r.wait()
		}
	}
	r.wait()
	return scanner.Err()
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
