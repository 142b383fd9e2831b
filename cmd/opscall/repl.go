package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/opscall/opscall/pkg/registry"
	"github.com/opscall/opscall/pkg/session"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive line-oriented service caller",
	Long: `A readline loop for composing and invoking service calls:

  services              list callable services
  use /add_two_ints     select a service
  show                  print the request tree
  set <path> <expr>     set a field expression
  counter <n>           set the value expressions see as i
  add <path>            append an array element
  call                  invoke the service
  save <label>          archive the current request
  load <label>          restore an archived request
  quit                  exit`,
	RunE: runRepl,
}

// repl holds the interactive loop state.
type repl struct {
	reg     registry.Registry
	sess    *session.Session
	timeout time.Duration
	archive string
	output  io.Writer
	rl      *readline.Instance
}

func runRepl(cmd *cobra.Command, args []string) error {
	timeout, err := callTimeout()
	if err != nil {
		return err
	}
	ctx := context.Background()
	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	r := &repl{
		reg:     reg,
		timeout: timeout,
		archive: flagArchive,
		output:  os.Stdout,
	}
	return r.run(ctx)
}

// run starts the interactive REPL loop.
func (r *repl) run(ctx context.Context) error {
	commands := []string{"services", "use", "show", "set", "counter",
		"add", "remove", "call", "save", "load", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	r.rl = rl
	defer rl.Close()

	fmt.Fprintf(r.output, "opscall %s — type 'services' to list targets, 'help' for commands.\n\n", version)

	for {
		rl.SetPrompt(r.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "services", "ls":
			r.handleServices(ctx)
		case "use", "u":
			r.handleUse(ctx, parts)
		case "show", "sh":
			r.handleShow()
		case "set", "s":
			r.handleSet(parts)
		case "counter", "i":
			r.handleCounter(parts)
		case "add":
			r.handleAdd(parts)
		case "remove":
			r.handleRemove(parts)
		case "call", "c":
			r.handleCall(ctx)
		case "save":
			r.handleSave(parts)
		case "load":
			r.handleLoad(parts)
		case "help", "?":
			r.handleHelp()
		case "quit", "q":
			fmt.Fprintf(r.output, "Exiting.\n")
			return nil
		default:
			fmt.Fprintf(r.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
		}
	}
}

// buildPrompt creates the prompt string: opscall[/service i=N]>
func (r *repl) buildPrompt() string {
	if r.sess == nil {
		return "opscall> "
	}
	return fmt.Sprintf("opscall[%s i=%d]> ", r.sess.Service().Name, r.sess.Counter())
}

func (r *repl) handleServices(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	names, err := session.ListAvailable(cctx, r.reg)
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	for _, name := range names {
		fmt.Fprintf(r.output, "  %s\n", name)
	}
}

func (r *repl) handleUse(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		fmt.Fprintf(r.output, "Usage: use <service>\n")
		return
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	sess, err := session.New(cctx, r.reg, parts[1])
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	r.sess = sess
	r.handleShow()
}

func (r *repl) handleShow() {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected. Use: use <service>\n")
		return
	}
	printTree(r.sess.Tree(), 1)
}

func (r *repl) handleSet(parts []string) {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected.\n")
		return
	}
	if len(parts) < 3 {
		fmt.Fprintf(r.output, "Usage: set <path> <expression>\n")
		return
	}
	path := parts[1]
	expr := strings.Join(parts[2:], " ")
	if err := r.sess.SetExpression(path, expr); err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
	}
}

func (r *repl) handleCounter(parts []string) {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected.\n")
		return
	}
	if len(parts) != 2 {
		fmt.Fprintf(r.output, "counter = %d\n", r.sess.Counter())
		return
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		fmt.Fprintf(r.output, "Error: counter must be an integer\n")
		return
	}
	if err := r.sess.SetCounter(n); err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
	}
}

func (r *repl) handleAdd(parts []string) {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected.\n")
		return
	}
	if len(parts) != 2 {
		fmt.Fprintf(r.output, "Usage: add <array-path>\n")
		return
	}
	child, err := r.sess.AddArrayElement(parts[1])
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.output, "added %s\n", child.Path)
}

func (r *repl) handleRemove(parts []string) {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected.\n")
		return
	}
	if len(parts) != 3 {
		fmt.Fprintf(r.output, "Usage: remove <array-path> <index>\n")
		return
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil {
		fmt.Fprintf(r.output, "Error: index must be an integer\n")
		return
	}
	if err := r.sess.RemoveArrayElement(parts[1], idx); err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
	}
}

func (r *repl) handleCall(ctx context.Context) {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected.\n")
		return
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, diags, err := r.sess.Call(cctx)
	for _, d := range diags {
		fmt.Fprintf(r.output, "  ⚠ %s\n", d)
	}
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
	}
	printTree(resp, 1)
}

func (r *repl) handleSave(parts []string) {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected.\n")
		return
	}
	if len(parts) != 2 {
		fmt.Fprintf(r.output, "Usage: save <label>\n")
		return
	}
	if err := r.sess.SaveRequest(r.archive, parts[1]); err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.output, "saved %q to %s\n", parts[1], r.archive)
}

func (r *repl) handleLoad(parts []string) {
	if r.sess == nil {
		fmt.Fprintf(r.output, "No service selected.\n")
		return
	}
	if len(parts) != 2 {
		fmt.Fprintf(r.output, "Usage: load <label>\n")
		return
	}
	if err := r.sess.LoadRequest(r.archive, parts[1]); err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	r.handleShow()
}

func (r *repl) handleHelp() {
	fmt.Fprint(r.output, `Commands:
  services              list callable services
  use <service>         select a service and show its request tree
  show                  print the current request tree
  set <path> <expr>     set a field expression, e.g. set /svc/a i*2
  counter [n]           show or set the value expressions see as i
  add <array-path>      append an element to an array field
  remove <path> <idx>   remove an array element
  call                  invoke the service and print the response
  save <label>          archive the current request
  load <label>          restore an archived request by label
  quit                  exit
`)
}
