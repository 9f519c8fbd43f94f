package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/forest6511/muxpass/internal/app"
	"github.com/forest6511/muxpass/pkg/session"
)

func init() {
	rootCmd.AddCommand(shellCmd)
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive session with an optional PIN lock",
	Long: `Start an interactive session.

Set a PIN with 'pin set' to enable the inactivity lock: after lock_timeout
without a command (60s by default) the session locks and every credential
command is refused until 'unlock' is given the PIN. The PIN lives only for
the duration of the session.

Type 'help' inside the shell for the list of commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sh := newShell(stdin, os.Stdout, os.Stderr, readSecret)
		s, err := openService(session.WithNotifier(sh.notify))
		if err != nil {
			return err
		}
		sh.attach(s)
		return sh.run()
	},
}

const shellHelp = `Commands:
  list [pattern]           list credentials, passwords masked
  show <name> [n]          print a password (n picks among same-named entries)
  add <name> [link]        add a credential, prompting for the password
  gen <name> [link]        add a credential with a generated password
  rename <name> <new> [n]  change a name
  relink <name> <link> [n] change a link ("" clears it)
  passwd <name> [n]        change a password
  delete <pattern>         delete matching credentials
  pin set | pin clear      configure or remove the PIN
  lock                     lock now (needs a PIN)
  unlock                   enter the PIN
  status                   show lock state
  help                     show this help
  exit                     leave the shell
Names containing spaces can be quoted: show "my bank"`

// shell is the interactive front end. Every command line counts as user
// activity for the inactivity timer.
type shell struct {
	c   *console
	in  *bufio.Reader
	out io.Writer

	// notifications arrive from the timer goroutine
	mu     sync.Mutex
	errOut io.Writer
}

func newShell(in *bufio.Reader, out, errOut io.Writer, readSecret func(string) (string, error)) *shell {
	sh := &shell{in: in, out: out, errOut: errOut}
	sh.c = &console{
		out:        out,
		errOut:     errOut,
		readSecret: readSecret,
		confirm:    sh.confirm,
	}
	return sh
}

func (sh *shell) attach(s *app.Service) {
	sh.c.svc = s
}

// notify renders lock state changes, including the re-emitted Locked
// notification when a command is refused.
func (sh *shell) notify(s session.State) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	switch s {
	case session.Locked:
		fmt.Fprintln(sh.errOut, "Session locked. Type 'unlock' to enter your PIN.")
	case session.Unlocked:
		fmt.Fprintln(sh.errOut, "Session unlocked.")
	}
}

func (sh *shell) confirm(prompt string) (bool, error) {
	fmt.Fprintf(sh.out, "%s [y/N]: ", prompt)
	answer, err := readLine(sh.in)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (sh *shell) run() error {
	fmt.Fprintln(sh.out, "muxpass shell. Type 'help' for commands.")
	for {
		fmt.Fprint(sh.out, "muxpass> ")
		line, err := sh.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		if strings.TrimSpace(line) != "" {
			if sh.exec(line) {
				return nil
			}
		}
		if eof {
			fmt.Fprintln(sh.out)
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(line string) bool {
	sh.c.svc.NotifyActivity()

	args, err := splitArgs(line)
	if err != nil {
		sh.printErr(err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	if args[0] == "exit" || args[0] == "quit" {
		return true
	}
	if err := sh.dispatch(args[0], args[1:]); err != nil {
		sh.printErr(err)
	}
	return false
}

func (sh *shell) printErr(err error) {
	// A refused command has already produced the locked notification.
	if errors.Is(err, session.ErrLocked) {
		return
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.errOut, "Error: %v\n", err)
}

func (sh *shell) dispatch(name string, args []string) error {
	c := sh.c
	switch name {
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
		return nil

	case "list", "ls":
		return c.list(optional(args, 0))

	case "show":
		if err := need(args, 1, "show <name> [n]"); err != nil {
			return err
		}
		n, err := index(args, 1)
		if err != nil {
			return err
		}
		return c.show(args[0], n)

	case "add":
		if err := need(args, 1, "add <name> [link]"); err != nil {
			return err
		}
		return c.add(args[0], optional(args, 1), "")

	case "gen":
		if err := need(args, 1, "gen <name> [link]"); err != nil {
			return err
		}
		passwords, err := generateOptions{length: defaultPasswordLength}.generate()
		if err != nil {
			return err
		}
		return c.add(args[0], optional(args, 1), passwords[0])

	case "rename":
		if err := need(args, 2, "rename <name> <new> [n]"); err != nil {
			return err
		}
		n, err := index(args, 2)
		if err != nil {
			return err
		}
		return c.edit(args[0], n, app.Update{Name: &args[1]})

	case "relink":
		if err := need(args, 2, "relink <name> <link> [n]"); err != nil {
			return err
		}
		n, err := index(args, 2)
		if err != nil {
			return err
		}
		return c.edit(args[0], n, app.Update{Link: &args[1]})

	case "passwd":
		if err := need(args, 1, "passwd <name> [n]"); err != nil {
			return err
		}
		n, err := index(args, 1)
		if err != nil {
			return err
		}
		// Resolve first so that a locked session does not prompt.
		if _, err := c.pick(args[0], n); err != nil {
			return err
		}
		password, err := c.readNewPassword()
		if err != nil {
			return err
		}
		return c.edit(args[0], n, app.Update{Password: &password})

	case "delete", "rm":
		if err := need(args, 1, "delete <pattern>"); err != nil {
			return err
		}
		return c.remove(args[0], false)

	case "pin":
		return sh.pin(args)

	case "lock":
		if !c.svc.HasPIN() {
			return errors.New("no PIN configured: use 'pin set' first")
		}
		c.svc.LockNow()
		return nil

	case "unlock":
		if !c.svc.IsLocked() {
			fmt.Fprintln(sh.out, "Session is not locked")
			return nil
		}
		pin, err := c.readSecret("PIN: ")
		if err != nil {
			return err
		}
		return c.svc.SubmitPIN(pin)

	case "status":
		state := session.Unlocked
		if c.svc.IsLocked() {
			state = session.Locked
		}
		fmt.Fprintf(sh.out, "Session: %s, PIN: %s\n", state, onOff(c.svc.HasPIN()))
		return nil

	default:
		return fmt.Errorf("unknown command %q (type 'help')", name)
	}
}

func (sh *shell) pin(args []string) error {
	c := sh.c
	switch optional(args, 0) {
	case "set":
		first, err := c.readSecret("New PIN (4 digits): ")
		if err != nil {
			return err
		}
		second, err := c.readSecret("Confirm PIN: ")
		if err != nil {
			return err
		}
		if first != second {
			return errors.New("PINs do not match")
		}
		if err := c.svc.ConfigurePIN(first); err != nil {
			return err
		}
		fmt.Fprintln(sh.out, "PIN set")
		return nil
	case "clear":
		if err := c.svc.ClearPIN(); err != nil {
			return err
		}
		fmt.Fprintln(sh.out, "PIN cleared")
		return nil
	default:
		return errors.New("usage: pin set | pin clear")
	}
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func index(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid index %q", args[i])
	}
	return n, nil
}

func onOff(b bool) string {
	if b {
		return "set"
	}
	return "not set"
}

// splitArgs splits a command line on whitespace. Double quotes group
// words, and a backslash escapes the next character inside quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)

	runes := []rune(strings.TrimRight(line, "\r\n"))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote && r == '\\' && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}

	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
