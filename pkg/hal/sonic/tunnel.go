package sonic

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/portmgr/pkg/util"
)

// RemoteRedis is the address of the switch's Redis as seen from its own
// SSH session.
const RemoteRedis = "127.0.0.1:6379"

// SSHTunnel forwards a local TCP port to the switch's Redis through an SSH
// connection. SONiC binds Redis to loopback without authentication, so
// management hosts reach it this way.
type SSHTunnel struct {
	host      string
	localAddr string
	sshClient *ssh.Client
	listener  net.Listener
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSSHTunnel dials SSH on host:sshPort and opens a local listener on a
// random port. A zero sshPort means 22.
func NewSSHTunnel(host string, sshPort int, user, pass string) (*SSHTunnel, error) {
	if sshPort == 0 {
		sshPort = 22
	}
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(pass),
		},
		// Switch host keys are rotated by reimaging; operators pin them out of band.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(sshPort))
	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("%w: SSH dial %s: %v", util.ErrNotConnected, addr, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("local listen: %w", err)
	}

	t := &SSHTunnel{
		host:      host,
		localAddr: listener.Addr().String(),
		sshClient: sshClient,
		listener:  listener,
		done:      make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	util.WithField("host", host).Debugf("ssh tunnel %s -> %s", t.localAddr, RemoteRedis)
	return t, nil
}

// LocalAddr returns the local address that forwards to the switch's Redis.
func (t *SSHTunnel) LocalAddr() string {
	return t.localAddr
}

// Close stops the listener, closes the SSH connection and waits for every
// forwarding goroutine.
func (t *SSHTunnel) Close() error {
	close(t.done)
	t.listener.Close()
	err := t.sshClient.Close()
	t.wg.Wait()
	return err
}

func (t *SSHTunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

// Exec runs a command on the switch and returns its combined output. Each
// call opens its own session; cancelling ctx closes it.
func (t *SSHTunnel) Exec(ctx context.Context, cmd string) (string, error) {
	session, err := t.sshClient.NewSession()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	stop := context.AfterFunc(ctx, func() { session.Close() })
	defer stop()

	output, err := session.CombinedOutput(cmd)
	if err != nil {
		if ctx.Err() != nil {
			return string(output), ctx.Err()
		}
		return string(output), fmt.Errorf("SSH exec '%s' on %s: %w", cmd, t.host, err)
	}
	return string(output), nil
}

// SaveConfig persists the running CONFIG_DB to the switch's config_db.json.
func (t *SSHTunnel) SaveConfig(ctx context.Context) error {
	out, err := t.Exec(ctx, "sudo config save -y")
	if err != nil {
		return fmt.Errorf("config save: %w (%s)", err, out)
	}
	return nil
}

func (t *SSHTunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer local.Close()

	remote, err := t.sshClient.Dial("tcp", RemoteRedis)
	if err != nil {
		util.WithField("host", t.host).Warnf("tunnel dial %s: %v", RemoteRedis, err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	select {
	case <-done:
	case <-t.done:
	}
}
