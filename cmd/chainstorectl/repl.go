package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/nullbyte-labs/chainstore"
	"github.com/nullbyte-labs/chainstore/config"
	"github.com/nullbyte-labs/chainstore/internal/shellwords"
	"github.com/nullbyte-labs/chainstore/log"
)

const prompt = "chainstore> "

// repl is an interactive shell over one chainstore.Store: a prefix
// completer, a switch-on-args[0] dispatch table, and a colored output line
// per command.
type repl struct {
	rl    *readline.Instance
	store *chainstore.Store
	cfg   *config.Config
}

func newRepl(store *chainstore.Store, cfg *config.Config) (*repl, error) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("get"),
		readline.PcItem("append"),
		readline.PcItem("list"),
		readline.PcItem("namespace"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	log.SetReadline(rl)
	return &repl{rl: rl, store: store, cfg: cfg}, nil
}

func (t *repl) output(format string, args ...interface{}) {
	fmt.Fprintf(color.Output, "%s\n", fmt.Sprintf(format, args...))
}

func (t *repl) run() {
	defer t.rl.Close()

	for {
		line, err := t.rl.Readline()
		if err == readline.ErrInterrupt {
			log.Info("type 'exit' to quit")
			continue
		} else if err == io.EOF {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args, err := shellwords.Split(line)
		if err != nil {
			log.Error("syntax error: %v", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			t.store.Close()
			return
		case "list":
			t.cmdList()
		case "get":
			t.cmdGet(args[1:])
		case "append":
			t.cmdAppend(args[1:])
		case "namespace":
			t.cmdNamespace(args[1:])
		case "help":
			t.output("commands: get <name>, append <name> <text>, list, namespace <name>, exit")
		default:
			log.Error("unknown command: %s", args[0])
		}
	}
}

func (t *repl) cmdList() {
	chains := t.store.List()
	if len(chains) == 0 {
		t.output("(no chains loaded)")
		return
	}
	for _, ch := range chains {
		t.output("%s  writable=%v  length=%d", hex.EncodeToString(ch.DiscoveryKey()), ch.Writable(), ch.Length())
	}
}

func (t *repl) cmdGet(args []string) {
	if len(args) != 1 {
		log.Error("usage: get <name>")
		return
	}
	ch, err := t.store.Get(chainstore.NameOption(args[0]))
	if err != nil {
		log.Error("get: %v", err)
		return
	}
	<-ch.Ready()
	t.output("%s  writable=%v  length=%d", hex.EncodeToString(ch.DiscoveryKey()), ch.Writable(), ch.Length())
}

func (t *repl) cmdAppend(args []string) {
	if len(args) < 2 {
		log.Error("usage: append <name> <text...>")
		return
	}
	ch, err := t.store.Get(chainstore.NameOption(args[0]))
	if err != nil {
		log.Error("get: %v", err)
		return
	}
	<-ch.Ready()

	appender, ok := ch.(interface{ Append([]byte) (uint64, error) })
	if !ok {
		log.Error("append: chain implementation does not support appends")
		return
	}
	seq, err := appender.Append([]byte(strings.Join(args[1:], " ")))
	if err != nil {
		log.Error("append: %v", err)
		return
	}
	t.output("appended at index %d", seq-1)
}

func (t *repl) cmdNamespace(args []string) {
	if len(args) != 1 {
		log.Error("usage: namespace <name>")
		return
	}
	ns := t.store.Namespace(args[0])
	if err := ns.Ready(context.Background()); err != nil {
		log.Error("namespace: %v", err)
		return
	}
	ch, err := ns.Default()
	if err != nil {
		log.Error("namespace: %v", err)
		return
	}
	<-ch.Ready()
	t.output("namespace %q default chain: %s", args[0], hex.EncodeToString(ch.DiscoveryKey()))
}
