package slurm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// runner executes one scheduler command and returns its stdout. It exists
// so the client can run commands either locally or on a remote submit
// host.
type runner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
	close() error
}

type localRunner struct{}

func (localRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%v failed: %w: %v", name, err, strings.TrimSpace(errOut.String()))
	}
	return out.Bytes(), nil
}

func (localRunner) close() error { return nil }

// sshRunner runs scheduler commands on a remote submit host, for machines
// that have no Slurm client tools of their own.
type sshRunner struct {
	client *ssh.Client
}

func newSSHRunner(host string) (*sshRunner, error) {
	me, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	username := me.Username
	if at := strings.Index(host, "@"); at >= 0 {
		username = host[:at]
		host = host[at+1:]
	}
	if !strings.Contains(host, ":") {
		host += ":22"
	}

	keyFile := filepath.Join(me.HomeDir, ".ssh", "id_rsa")
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %v: %w", keyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %v: %w", keyFile, err)
	}
	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	client, err := ssh.Dial("tcp", host, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial submit host %v: %w", host, err)
	}
	return &sshRunner{client: client}, nil
}

func (r *sshRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh session: %w", err)
	}
	defer session.Close()

	var out, errOut bytes.Buffer
	session.Stdout = &out
	session.Stderr = &errOut

	cmd := name
	for _, a := range args {
		cmd += " " + shellQuote(a)
	}
	if err := session.Start(cmd); err != nil {
		return nil, fmt.Errorf("failed to start %v on submit host: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%v failed on submit host: %w: %v",
				name, err, strings.TrimSpace(errOut.String()))
		}
	}
	return out.Bytes(), nil
}

func (r *sshRunner) close() error { return r.client.Close() }

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'$`\\*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
