package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const dialTimeout = 30 * time.Second

type Ssh struct {
	host       string
	key        string
	user       string
	knownHosts string
}

func NewSsh(host, key, user string) *Ssh {
	return &Ssh{
		host: host,
		key:  key,
		user: user,
	}
}

// WithKnownHosts verifies the server key against a known_hosts file instead
// of accepting any host key.
func (s *Ssh) WithKnownHosts(path string) *Ssh {
	s.knownHosts = path
	return s
}

func ensureHaveSSHPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, "22")
	}
	return addr
}

func (s *Ssh) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.knownHosts == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	callback, err := knownhosts.New(s.knownHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", s.knownHosts, err)
	}

	return callback, nil
}

// CreateSshClient dials the ssh server with public key auth.
func (s *Ssh) CreateSshClient(ctx context.Context) (*ssh.Client, error) {
	host := ensureHaveSSHPort(s.host)

	signer, err := ssh.ParsePrivateKey([]byte(s.key))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh private key: %w", err)
	}

	callback, err := s.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	conf := &ssh.ClientConfig{
		User:            s.user,
		HostKeyCallback: callback,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		Timeout: dialTimeout,
	}

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", host, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, host, conf)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish ssh connection to %s: %w", host, err)
	}

	return ssh.NewClient(c, chans, reqs), nil
}
