package adapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"netlayers/internal/domain"
)

// hostnameCommand prefers the FQDN and falls back to the plain name
const hostnameCommand = "hostname -f 2>/dev/null || hostname"

// SSHProbeConfig holds credentials and limits for the hostname probe
type SSHProbeConfig struct {
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	PrivateKey string        `yaml:"private_key"`
	Passphrase string        `yaml:"passphrase"`
	Port       int           `yaml:"port"`
	Timeout    time.Duration `yaml:"timeout"`
	// OnlyUnnamed skips hosts that already carry a name (e.g. from reverse DNS)
	OnlyUnnamed bool `yaml:"only_unnamed"`
}

// SSHHostnameProbe logs into hosts with an open SSH port and asks them for
// their hostname, which becomes the discovered node name
type SSHHostnameProbe struct {
	config SSHProbeConfig
}

// NewSSHHostnameProbe creates the probe. Credentials are checked on first
// use.
func NewSSHHostnameProbe(config SSHProbeConfig) *SSHHostnameProbe {
	if config.Port == 0 {
		config.Port = 22
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &SSHHostnameProbe{config: config}
}

// Name returns the enricher identifier
func (s *SSHHostnameProbe) Name() string {
	return "sshprobe"
}

// Enrich replaces h.Name with the host's own short hostname. Hosts without
// the SSH port open are left alone.
func (s *SSHHostnameProbe) Enrich(ctx context.Context, h *domain.DiscoveredHost) error {
	if !slices.Contains(h.Ports, s.config.Port) {
		return nil
	}
	if s.config.OnlyUnnamed && h.Name != "" {
		return nil
	}

	client, err := s.connect(ctx, h.IP)
	if err != nil {
		return err
	}
	defer client.Close()

	output, err := s.runCommand(ctx, client, hostnameCommand)
	if err != nil {
		return err
	}
	facts, err := parseHostname(output)
	if err != nil {
		return err
	}

	name := facts["hostname"].(string)
	if short, ok := facts["hostname_short"].(string); ok {
		name = short
	}
	log.Printf("SSH probe: %s is %s", h.IP, name)
	h.Name = name
	return nil
}

// connect establishes an SSH connection with the configured credentials
func (s *SSHHostnameProbe) connect(ctx context.Context, host string) (*ssh.Client, error) {
	config, err := s.buildSSHConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(s.config.Port))
	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// buildSSHConfig prefers key auth and falls back to a password
func (s *SSHHostnameProbe) buildSSHConfig() (*ssh.ClientConfig, error) {
	if s.config.Username == "" {
		return nil, errors.New("username not configured")
	}

	var auth []ssh.AuthMethod
	if s.config.PrivateKey != "" {
		var (
			signer ssh.Signer
			err    error
		)
		if s.config.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(s.config.PrivateKey), []byte(s.config.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(s.config.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if s.config.Password != "" {
		auth = append(auth, ssh.Password(s.config.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("no SSH credentials configured")
	}

	return &ssh.ClientConfig{
		User:            s.config.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.config.Timeout,
	}, nil
}

// runCommand executes a command over SSH and returns the output
func (s *SSHHostnameProbe) runCommand(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		var exitErr *ssh.ExitError
		if r.err != nil && !errors.As(r.err, &exitErr) {
			return "", fmt.Errorf("command failed: %w", r.err)
		}
		return string(r.out), nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case <-time.After(s.config.Timeout):
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout")
	}
}

// parseHostname extracts hostname facts from hostname command output
func parseHostname(output string) (map[string]any, error) {
	hostname := strings.TrimSpace(output)
	if hostname == "" {
		return nil, fmt.Errorf("empty hostname")
	}
	if idx := strings.IndexAny(hostname, "\r\n"); idx >= 0 {
		hostname = strings.TrimSpace(hostname[:idx])
	}

	facts := map[string]any{
		"hostname": hostname,
	}

	if idx := strings.Index(hostname, "."); idx > 0 {
		facts["hostname_short"] = hostname[:idx]
		facts["domain"] = hostname[idx+1:]
	}

	return facts, nil
}
