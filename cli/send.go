package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"moochat/model"
	"moochat/session"
	"moochat/storage"
)

// streamPrinter writes reply fragments as they arrive.
type streamPrinter struct {
	w io.Writer

	mu      sync.Mutex
	printed int
	streams bool
}

func (p *streamPrinter) observe(s session.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.PendingIncoming == nil {
		p.printed = 0
		return
	}
	content := s.PendingIncoming.Content
	if len(content) > p.printed {
		fmt.Fprint(p.w, content[p.printed:])
		p.printed = len(content)
		p.streams = true
	}
}

func (p *streamPrinter) streamed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams
}

type keyPromptNotice struct {
	w io.Writer
}

func (k keyPromptNotice) OpenAPIKeyModal() {
	fmt.Fprintln(k.w, "No API key for this model's provider. Add one with `moochat keys add`.")
}

func newSendCmd(v *viper.Viper) *cobra.Command {
	var (
		conversationID string
		approve        bool
		reject         bool
		reasoning      bool
		noTools        bool
	)

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one message and stream the reply",
		Long: "Send one message and stream the reply to stdout.\n" +
			"Use \"-\" as the message to read it from stdin. With --approve or --reject,\n" +
			"the pending tool call of the conversation is decided instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve && reject {
				return fmt.Errorf("--approve and --reject are mutually exclusive")
			}
			var decision *bool
			if approve || reject {
				if conversationID == "" {
					return fmt.Errorf("a tool decision needs --conversation")
				}
				decision = &approve
			}

			content := strings.Join(args, " ")
			if content == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read message: %w", err)
				}
				content = string(b)
			}
			if decision == nil && strings.TrimSpace(content) == "" {
				return session.ErrEmptyMessage
			}

			a, err := newApp(cmd, v, true)
			if err != nil {
				return err
			}
			modelID := a.cfg.DefaultModel

			printer := &streamPrinter{w: a.out}
			opts := []session.Option{
				session.WithObserver(printer.observe),
				session.WithKeyPrompter(keyPromptNotice{w: a.errOut}),
				session.WithModel(modelID),
				session.WithFlags(reasoning || a.cfg.Reasoning, a.cfg.ToolCalling && !noTools),
			}
			var store *storage.TranscriptStore
			if s, err := a.openStore(); err == nil {
				store = s
				defer store.Close()
				opts = append(opts, session.WithRecorder(store))
			}
			ctrl := session.New(a.client, opts...)

			ctx := cmd.Context()
			if err := ctrl.RefreshAPIKeys(ctx); err != nil {
				return err
			}
			if err := ctrl.ChangeModel(modelID); err != nil {
				return err
			}
			if conversationID != "" {
				if err := ctrl.LoadConversation(ctx, conversationID); err != nil {
					return err
				}
			}

			sendErr := ctrl.SendMessage(ctx, content, decision)
			final := ctrl.Snapshot()
			if printer.streamed() {
				fmt.Fprintln(a.out)
			} else if sendErr == nil {
				printFinalReply(a.out, final)
			}

			if tu, ok := final.PendingToolUse(); ok {
				printToolRequest(a.out, final.ConversationID, tu)
			}
			if sendErr != nil {
				if errors.Is(sendErr, session.ErrCanceled) {
					return fmt.Errorf("cancelled")
				}
				return sendErr
			}
			if conversationID == "" && final.ConversationID != "" {
				fmt.Fprintf(a.errOut, "conversation: %s\n", final.ConversationID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&conversationID, "conversation", "c", "", "continue an existing conversation")
	f.BoolVar(&approve, "approve", false, "approve the pending tool call")
	f.BoolVar(&reject, "reject", false, "reject the pending tool call")
	f.BoolVar(&reasoning, "reasoning", false, "ask the model to reason before answering")
	f.BoolVar(&noTools, "no-tools", false, "disable tool calling for this message")
	return cmd
}

// printFinalReply prints the last assistant message when nothing was streamed.
func printFinalReply(w io.Writer, s session.State) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == model.RoleUser {
			return
		}
		if m.Role == model.RoleAssistant && m.Content != "" {
			fmt.Fprintln(w, m.Content)
			return
		}
	}
}

func printToolRequest(w io.Writer, conversationID string, m model.Message) {
	fmt.Fprintf(w, "\nTool call requested: %s\n", m.ToolUse.Name)
	for _, k := range slices.Sorted(maps.Keys(m.ToolUse.Args)) {
		fmt.Fprintf(w, "  %s = %v\n", k, m.ToolUse.Args[k])
	}
	fmt.Fprintf(w, "Decide with: moochat send -c %s --approve (or --reject)\n", conversationID)
}
