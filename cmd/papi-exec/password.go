package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/newtron-network/papibridge/pkg/papi"
)

const passwordEnv = "PAPI_SSH_PASSWORD"

// Replaced in tests.
var (
	stdin        io.Reader = os.Stdin
	stdinIsTTY             = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	readPassword           = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }
)

// resolvePassword picks the SSH password: --password, then --password-stdin,
// then $PAPI_SSH_PASSWORD. With none of those and no key file, an
// interactive terminal is prompted; otherwise the password stays empty.
func resolvePassword(cfg papi.Config) (string, error) {
	if password != "" {
		return password, nil
	}
	if passwordStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	if cfg.KeyFile != "" || !stdinIsTTY() {
		return "", nil
	}

	fmt.Fprintf(os.Stderr, "%s@%s's password: ", cfg.User, cfg.Host)
	pw, err := readPassword()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
