//go:build !coverage

package testutils

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/crypto/ssh"
)

func GenerateRSAPrivateKey() (string, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", fmt.Errorf("could not genereate rsa key pair %w", err)
	}

	keyPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		},
	)

	return string(keyPEM), nil
}

// ChannelHandler serves the requests of one accepted session channel.
type ChannelHandler func(requests <-chan *ssh.Request, channel ssh.Channel)

// StartSshServer accepts numberOfConnections connections on address, calling
// onClient in a goroutine once the listener is ready. It returns after the
// last connection is closed.
func StartSshServer(address string, privateKey string, numberOfConnections int, onClient func(), handle ChannelHandler) error {
	sshConfig := &ssh.ServerConfig{
		PublicKeyCallback: func(c ssh.ConnMetadata, pubKey ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{
				Extensions: map[string]string{
					"pubkey-fp": ssh.FingerprintSHA256(pubKey),
				},
			}, nil
		},
	}

	private, err := ssh.ParsePrivateKey([]byte(privateKey))
	if err != nil {
		return err
	}

	sshConfig.AddHostKey(private)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	defer func() {
		if err = listener.Close(); err != nil {
			slog.Error("fail to close listener", slog.Any("error", err))
		}
	}()

	go onClient()

	for range numberOfConnections {
		nConn, err := listener.Accept()
		if err != nil {
			return err
		}

		conn, chans, reqs, err := ssh.NewServerConn(nConn, sshConfig)
		if err != nil {
			return err
		}

		slog.Debug("ssh logged in", slog.Any("key", conn.Permissions.Extensions["pubkey-fp"]))

		go ssh.DiscardRequests(reqs)

		for newChannel := range chans {
			if newChannel.ChannelType() != "session" {
				newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
				continue
			}

			channel, requests, err := newChannel.Accept()
			if err != nil {
				return err
			}

			go func() {
				defer channel.Close()
				handle(requests, channel)
			}()
		}
	}

	return nil
}

// ExecHandler runs a remote command and returns its exit status.
type ExecHandler func(command string, stdout, stderr io.Writer) uint32

// HandleExec answers the first exec request of a session with handler.
func HandleExec(handler ExecHandler) ChannelHandler {
	return func(requests <-chan *ssh.Request, channel ssh.Channel) {
		for req := range requests {
			if req.Type != "exec" {
				req.Reply(false, nil)
				continue
			}

			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}

			req.Reply(true, nil)

			status := handler(payload.Command, channel, channel.Stderr())

			exit := struct{ Status uint32 }{status}
			if _, err := channel.SendRequest("exit-status", false, ssh.Marshal(&exit)); err != nil {
				slog.Error("fail to send exit status", slog.Any("error", err))
			}

			return
		}
	}
}
