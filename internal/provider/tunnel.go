package provider

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// sshTunnel dials database connections through an SSH jump host, falling
// back to a direct TCP dial when the tunnel cannot be established. The SSH
// client is created lazily and reused; Close releases it.
type sshTunnel struct {
	sshAddr  string
	user     string
	keyPath  string
	destAddr string

	mu     sync.Mutex
	client *ssh.Client
}

func newSSHTunnel(sshHost string, sshPort int, user, keyPath, destAddr string) *sshTunnel {
	return &sshTunnel{
		sshAddr:  net.JoinHostPort(sshHost, fmt.Sprintf("%d", sshPort)),
		user:     user,
		keyPath:  keyPath,
		destAddr: destAddr,
	}
}

// DialContext satisfies the mysql driver's custom dialer contract. The addr
// argument is the DSN address; the tunnel always targets destAddr as seen
// from the jump host.
func (t *sshTunnel) DialContext(ctx context.Context, addr string) (net.Conn, error) {
	client, err := t.acquireClient()
	if err == nil {
		conn, dialErr := client.DialContext(ctx, "tcp", t.destAddr)
		if dialErr == nil {
			return conn, nil
		}
		err = dialErr
		t.dropClient(client)
	}

	// Tunnel path failed; try reaching the host directly before giving up.
	log.Printf("[tunnel] ssh path failed (%v), attempting direct connection to %s", err, addr)
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, directErr := d.DialContext(ctx, "tcp", addr)
	if directErr != nil {
		return nil, fmt.Errorf("ssh tunnel failed (%v) and direct dial failed: %w", err, directErr)
	}
	return conn, nil
}

// acquireClient returns the shared SSH client, establishing it on first use
// or after a drop.
func (t *sshTunnel) acquireClient() (*ssh.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}

	key, err := os.ReadFile(t.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	client, err := ssh.Dial("tcp", t.sshAddr, &ssh.ClientConfig{
		User:            t.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", t.sshAddr, err)
	}

	log.Printf("[tunnel] ssh connection to %s established", t.sshAddr)
	t.client = client
	return client, nil
}

// dropClient discards a client whose channels have started failing so the
// next dial re-establishes the tunnel.
func (t *sshTunnel) dropClient(client *ssh.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == client {
		t.client = nil
	}
	client.Close()
}

// Close releases the SSH client if one is open.
func (t *sshTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
