package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/giantswarm/kube-dbmigrate/internal/k8s"
)

// errNoInput is returned when stdin is closed before an answer is read.
var errNoInput = errors.New("no input available")

// prompter asks the operator for missing values. Passwords are read without
// echo when stdin is a terminal.
type prompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func() ([]byte, error)
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.readPassword = func() ([]byte, error) { return term.ReadPassword(fd) }
	}
	return p
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// String asks for a value. An empty answer returns def; with no default the
// question is repeated until an answer is given.
func (p *prompter) String(label, def string) (string, error) {
	for {
		if def != "" {
			_, _ = fmt.Fprintf(p.out, "%s [%s]: ", label, def)
		} else {
			_, _ = fmt.Fprintf(p.out, "%s: ", label)
		}

		answer, err := p.readLine()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", label, err)
		}
		if answer == "" {
			answer = def
		}
		if answer != "" {
			return answer, nil
		}
	}
}

// Int asks for a number, repeating the question on invalid input.
func (p *prompter) Int(label string, def int) (int, error) {
	for {
		answer, err := p.String(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil {
			return n, nil
		}
		_, _ = fmt.Fprintf(p.out, "%q is not a number\n", answer)
	}
}

// Password asks for a secret. An empty answer is allowed and means no
// password.
func (p *prompter) Password(label string) (string, error) {
	_, _ = fmt.Fprintf(p.out, "%s: ", label)

	if p.readPassword != nil {
		pw, err := p.readPassword()
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", label, err)
		}
		return string(pw), nil
	}

	pw, err := p.readLine()
	if err != nil && !errors.Is(err, errNoInput) {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return pw, nil
}

// Confirm asks a yes/no question. Only "y" and "yes" confirm.
func (p *prompter) Confirm(question string) (bool, error) {
	_, _ = fmt.Fprintf(p.out, "%s [y/N]: ", question)

	answer, err := p.readLine()
	if err != nil {
		if errors.Is(err, errNoInput) {
			return false, nil
		}
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ChooseContext lists the kubeconfig contexts and lets the operator pick one
// by number or name. An empty answer picks the current context.
func (p *prompter) ChooseContext(label string, contexts []k8s.ContextInfo) (string, error) {
	if len(contexts) == 0 {
		return "", errors.New("kubeconfig defines no contexts")
	}

	current := ""
	_, _ = fmt.Fprintf(p.out, "Available contexts:\n")
	for i, c := range contexts {
		marker := " "
		if c.Current {
			marker = "*"
			current = c.Name
		}
		_, _ = fmt.Fprintf(p.out, " %s %2d) %s\n", marker, i+1, c.Name)
	}

	for {
		answer, err := p.String(label, current)
		if err != nil {
			return "", err
		}

		if n, err := strconv.Atoi(answer); err == nil {
			if n >= 1 && n <= len(contexts) {
				return contexts[n-1].Name, nil
			}
		} else {
			for _, c := range contexts {
				if c.Name == answer {
					return c.Name, nil
				}
			}
		}
		_, _ = fmt.Fprintf(p.out, "unknown context %q\n", answer)
	}
}
