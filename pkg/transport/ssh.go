package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/papibridge/pkg/util"
)

// DefaultDialTimeout bounds the TCP connect and SSH handshake.
const DefaultDialTimeout = 10 * time.Second

// SSHConfig holds connection parameters. Credentials are supplied by the
// caller; nothing here manages keys.
type SSHConfig struct {
	Host           string
	Port           int // 0 means 22
	User           string
	Password       string
	KeyFile        string // optional private key (PEM)
	KnownHostsFile string // empty disables host key checking
	DialTimeout    time.Duration
}

// Addr returns host:port.
func (c SSHConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.KeyFile != "" {
		pem, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key %s: %w", c.KeyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parsing key %s: %w", c.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		pass := c.Password
		auth = append(auth,
			ssh.Password(pass),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pass
				}
				return answers, nil
			}),
		)
	}

	// Lab/test environment unless a known_hosts file is given.
	hostKey := ssh.InsecureIgnoreHostKey()
	if c.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	}

	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// SSHClient is a Runner backed by one SSH connection.
type SSHClient struct {
	addr   string
	client *ssh.Client

	closeOnce sync.Once
	closeErr  error
}

// DialSSH opens the SSH connection eagerly.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSHClient, error) {
	config, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := cfg.Addr()
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake %s: %w", addr, err)
	}
	conn.SetDeadline(time.Time{})

	util.WithHost(addr).Debug("SSH connection established")
	return &SSHClient{addr: addr, client: ssh.NewClient(c, chans, reqs)}, nil
}

// Addr returns the remote address.
func (c *SSHClient) Addr() string {
	return c.addr
}

// Run executes cmd in a new session and reads stdout and stderr fully.
// When ctx ends first the session is killed and ctx.Err() is returned.
func (c *SSHClient) Run(ctx context.Context, cmd string) (*Result, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(cmd); err != nil {
		return nil, fmt.Errorf("SSH exec: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return nil, ctx.Err()
	case err := <-done:
		res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitStatus = exitErr.ExitStatus()
			return res, nil
		}
		return res, fmt.Errorf("SSH exec: %w", err)
	}
}

// Close closes the connection. Only the first call has any effect.
func (c *SSHClient) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.Close()
		util.WithHost(c.addr).Debug("SSH connection closed")
	})
	return c.closeErr
}
