package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/eightd/eightd/internal/config"
	internalhttp "github.com/eightd/eightd/internal/http"
)

// prompter reads answers for interactive commands.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// line asks a question and returns the trimmed answer, or def on an empty line.
func (p *prompter) line(question, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	input, _ := p.in.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// integer asks for a number in [min, max], re-asking on bad input.
func (p *prompter) integer(question string, def, min, max int) int {
	for {
		answer := p.line(question, strconv.Itoa(def))
		v, err := strconv.Atoi(answer)
		if err == nil && v >= min && v <= max {
			return v
		}
		fmt.Fprintf(p.out, "  Please enter a number between %d and %d\n", min, max)
		// Stop asking when input is exhausted
		if _, err := p.in.Peek(1); err != nil {
			return def
		}
	}
}

// confirm asks a yes/no question.
func (p *prompter) confirm(question string, def bool) bool {
	d := "y/N"
	if def {
		d = "Y/n"
	}
	answer := strings.ToLower(p.line(question+" ("+d+")", ""))
	switch answer {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

// readPassword reads a secret from the terminal without echo.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot prompt for a password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// ensureProxyPassword asks for the proxy password when the configured proxy
// needs one. The password is never written to the config file.
func ensureProxyPassword(cfg *config.Config) error {
	if !internalhttp.NeedsProxyPassword(cfg) {
		return nil
	}
	pw, err := readPassword(fmt.Sprintf("Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost))
	if err != nil {
		return err
	}
	cfg.ProxyPassword = pw
	return nil
}
