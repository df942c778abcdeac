// Package console is the serial-style command surface. Lines are tokenized
// with shell quoting rules so values with spaces work:
//
//	config set wifi_ssid "my network"
package console

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/shlex"
)

// Handler processes one tokenized command (the command word stripped) and
// returns the text to print.
type Handler func(args []string) string

// Console dispatches lines to registered command handlers.
type Console struct {
	handlers map[string]Handler
}

func New() *Console {
	return &Console{handlers: map[string]Handler{}}
}

// Register installs a handler for a command word.
func (c *Console) Register(name string, h Handler) {
	c.handlers[name] = h
}

// Dispatch tokenizes and routes one input line.
func (c *Console) Dispatch(line string) string {
	args, err := shlex.Split(line)
	if err != nil {
		return "parse error: " + err.Error()
	}
	if len(args) == 0 {
		return ""
	}
	if args[0] == "help" {
		return c.help()
	}
	h, ok := c.handlers[args[0]]
	if !ok {
		return "unknown command: " + args[0] + " (try: help)"
	}
	return h(args[1:])
}

// Run reads lines from r and writes responses to w until EOF.
func (c *Console) Run(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if out := c.Dispatch(line); out != "" {
			fmt.Fprintln(w, out)
		}
	}
	return sc.Err()
}

func (c *Console) help() string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return "commands: help " + strings.Join(names, " ")
}
