package clients

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/edgeops/converge/kernel/model"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// NewHost builds the host channel for the environment: local exec when no
// address is configured, SSH/SFTP otherwise.
func NewHost(cfg model.HostConfig) (Host, error) {
	if cfg.Local() {
		return &LocalHost{}, nil
	}
	return dialSshHost(cfg)
}

// LocalHost runs commands and file operations on the machine converge itself
// runs on.
type LocalHost struct{}

func (h *LocalHost) Exec(ctx context.Context, cmd string) (string, error) {
	var out bytes.Buffer
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Stdout = &out
	c.Stderr = &out
	err := c.Run()
	pfxlog.Logger().WithField("cmd", cmd).Debugf("local exec (err=%v)", err)
	return out.String(), err
}

func (h *LocalHost) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (h *LocalHost) WriteFile(path string, data []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	// WriteFile does not change the mode of a pre-existing file.
	return os.Chmod(path, mode)
}

func (h *LocalHost) Remove(path string) error {
	return os.Remove(path)
}

func (h *LocalHost) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (h *LocalHost) Close() error {
	return nil
}

// SshHost drives a remote machine over a single SSH connection, with SFTP for
// file operations.
type SshHost struct {
	client *ssh.Client
	ftp    *sftp.Client
}

func dialSshHost(cfg model.HostConfig) (*SshHost, error) {
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read ssh key [%s]", cfg.KeyFile)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse ssh key")
	}
	client, err := ssh.Dial("tcp", cfg.Address, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to dial [%s]", cfg.Address)
	}
	ftp, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "unable to open sftp channel")
	}
	return &SshHost{client: client, ftp: ftp}, nil
}

func (h *SshHost) Exec(ctx context.Context, cmd string) (string, error) {
	session, err := h.client.NewSession()
	if err != nil {
		return "", errors.Wrap(err, "unable to open ssh session")
	}
	defer func() { _ = session.Close() }()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGKILL)
		case <-done:
		}
	}()

	out, err := session.CombinedOutput(cmd)
	close(done)
	pfxlog.Logger().WithField("cmd", cmd).Debugf("remote exec (err=%v)", err)
	return string(out), err
}

func (h *SshHost) ReadFile(path string) ([]byte, error) {
	f, err := h.ftp.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *SshHost) WriteFile(path string, data []byte, mode os.FileMode) error {
	f, err := h.ftp.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return h.ftp.Chmod(path, mode)
}

func (h *SshHost) Remove(path string) error {
	return h.ftp.Remove(path)
}

func (h *SshHost) Stat(path string) (os.FileInfo, error) {
	return h.ftp.Stat(path)
}

func (h *SshHost) Close() error {
	_ = h.ftp.Close()
	return h.client.Close()
}
