// Package console runs the bot as a terminal REPL for one local user.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/finbot-dev/finbot/internal/intake"
	"github.com/finbot-dev/finbot/internal/transport"
)

// LocalUser is the user and chat id of the console session.
const LocalUser int64 = 1

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	botColor    = color.New(color.FgGreen)
	alertColor  = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

// Console reads lines from in and writes replies to out.
type Console struct {
	in        io.Reader
	out       io.Writer
	exportDir string

	mu sync.Mutex // serializes writes to out
}

// New creates a Console. Documents are saved under exportDir.
func New(in io.Reader, out io.Writer, exportDir string) *Console {
	if exportDir == "" {
		exportDir = "."
	}
	return &Console{in: in, out: out, exportDir: exportDir}
}

// Run reads until EOF, "sair", or ctx is done.
func (c *Console) Run(ctx context.Context, h transport.Handler) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "sair" || line == "exit" {
				return nil
			}
			if line != "" {
				reply, err := h.Handle(ctx, intake.Inbound{UserID: LocalUser, ChatID: LocalUser, Text: line})
				if err != nil {
					c.printErr(err)
				} else {
					c.print(reply)
				}
			}
			c.prompt()
		}
	}
}

// Send implements transport.Sender.
func (c *Console) Send(_ context.Context, _ int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := botColor.Fprintln(c.out, text)
	return err
}

func (c *Console) prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	promptColor.Fprint(c.out, "> ")
}

func (c *Console) print(r intake.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	botColor.Fprintln(c.out, r.Text)
	for _, a := range r.Alerts {
		if !strings.Contains(r.Text, a.Message) {
			alertColor.Fprintln(c.out, a.Message)
		}
	}
	if r.Document != nil {
		path, err := c.save(r.Document.Name, r.Document.Data)
		if err != nil {
			errColor.Fprintf(c.out, "Erro ao salvar %s: %v\n", r.Document.Name, err)
			return
		}
		fmt.Fprintf(c.out, "Arquivo salvo em %s\n", path)
	}
}

func (c *Console) printErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	errColor.Fprintf(c.out, "Erro: %v\n", err)
}

func (c *Console) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(c.exportDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(c.exportDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
