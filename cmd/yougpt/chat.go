package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/yougpt/chat"
	"github.com/hrygo/yougpt/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the response engine in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals...)
		defer stop()

		r := newREPL(rt.chat, cmd.InOrStdin(), cmd.OutOrStdout())
		runErr := r.run(ctx)
		if err := rt.chat.Close(context.Background()); err != nil {
			return err
		}
		return runErr
	},
}

const replHelp = `Commands:
  /new            start a new conversation
  /list           list conversations
  /select <id>    switch to a conversation
  /delete <id>    delete a conversation
  /health         check the response engine
  /model          show model information
  /help           show this help
  /quit           exit
Anything else is sent as a prompt to the active conversation.`

// repl is a line-oriented chat session over a chat.Service.
type repl struct {
	svc *chat.Service
	in  *bufio.Scanner
	out io.Writer
}

func newREPL(svc *chat.Service, in io.Reader, out io.Writer) *repl {
	return &repl{svc: svc, in: bufio.NewScanner(in), out: out}
}

func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.printf("YOUGPT terminal chat. Type /help for commands.\n")
	if active := r.svc.Store().Snapshot().Active(); active != nil {
		r.printConversation(active)
	}

	lines, errc := r.readLines(ctx)
	for {
		if ctx.Err() != nil {
			r.printf("\n")
			return nil
		}
		r.printf("> ")
		select {
		case <-ctx.Done():
			r.printf("\n")
			return nil
		case line, ok := <-lines:
			if !ok {
				r.printf("\n")
				return <-errc
			}
			quit, err := r.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if quit || ctx.Err() != nil {
				return nil
			}
		}
	}
}

// readLines scans input on its own goroutine so a blocked read never holds up
// cancellation. The goroutine stops at EOF or once ctx is done.
func (r *repl) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		for r.in.Scan() {
			select {
			case lines <- r.in.Text():
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- r.in.Err()
	}()
	return lines, errc
}

// handle executes one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.send(ctx, line)
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		r.printf("%s\n", replHelp)
	case "/new":
		conv := r.svc.CreateConversation(ctx)
		r.printf("Started conversation %s\n", conv.ID)
	case "/list":
		r.list()
	case "/select":
		conv, ok := r.svc.Store().GetConversation(arg)
		if !ok {
			r.printf("No conversation %q\n", arg)
			return false, nil
		}
		r.svc.SelectConversation(ctx, arg)
		r.printConversation(conv)
	case "/delete":
		if err := r.svc.DeleteConversation(ctx, arg); err != nil {
			if errors.Is(err, chat.ErrProtectedConversation) {
				r.printf("The welcome conversation cannot be deleted\n")
				return false, nil
			}
			return false, err
		}
		r.printf("Deleted %s\n", arg)
	case "/health":
		status := r.svc.Engine().HealthCheck(ctx)
		r.printf("Engine: %s (%s)\n", status.Status, status.Detail)
	case "/model":
		info := r.svc.Engine().ModelInfo()
		r.printf("%s (%s parameters)\n%s\n", info.Name, info.Parameters, info.Description)
		for _, c := range info.Capabilities {
			r.printf("  - %s\n", c)
		}
	default:
		r.printf("Unknown command %s. Type /help for commands.\n", command)
	}
	return false, nil
}

func (r *repl) send(ctx context.Context, prompt string) error {
	id, ok := r.svc.Store().ActiveConversationID()
	if !ok {
		id = r.svc.CreateConversation(ctx).ID
	}

	pending, err := r.svc.Submit(ctx, id, prompt)
	switch {
	case errors.Is(err, chat.ErrBusy):
		r.printf("Still thinking about the previous message...\n")
		return nil
	case errors.Is(err, chat.ErrEmptyPrompt):
		return nil
	case err != nil:
		return err
	}

	r.printf("YOUGPT is thinking...\n")
	if err := pending.Wait(ctx); err != nil {
		r.printf("Interrupted; the reply will still be added to the conversation.\n")
		return nil
	}
	if reply := pending.Reply(); reply != nil {
		r.printMessage(*reply)
	}
	return nil
}

func (r *repl) list() {
	snapshot := r.svc.Store().Snapshot()
	if len(snapshot.Conversations) == 0 {
		r.printf("No conversations. Type /new to start one.\n")
		return
	}
	for _, conv := range snapshot.Conversations {
		marker := " "
		if conv.ID == snapshot.ActiveConversationID {
			marker = "*"
		}
		r.printf("%s %-16s %s (%d messages)\n", marker, conv.ID, conv.Title, len(conv.Messages))
	}
}

func (r *repl) printConversation(conv *store.Conversation) {
	r.printf("== %s ==\n", conv.Title)
	for _, m := range conv.Messages {
		r.printMessage(m)
	}
}

func (r *repl) printMessage(m store.Message) {
	name := "You"
	if m.Role == store.RoleAssistant {
		name = "YOUGPT"
	}
	r.printf("[%s] %s: %s\n", m.Timestamp.Format("15:04"), name, m.Content)
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
