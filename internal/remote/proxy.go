// ABOUTME: SSH+SOCKS5 proxy dialer for reaching media servers behind jump hosts
// ABOUTME: Parses BLOOM_ALL_PROXY and lazily builds the proxy dialer on first use

package remote

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
)

// socksDialer routes connections through an SSH host running a SOCKS5
// forward, configured as ssh+socks5://user@host:port?private-key=/path. The
// SSH tunnel is expensive to establish, so the inner dialer is built on
// first use and reused.
type socksDialer struct {
	socks5  *proxy.Socks5Proxy
	user    string
	sshKey  string
	sshHost string

	mu   sync.RWMutex
	dial proxy.DialFunc
}

func newSOCKS5Dialer(allProxy string) (*socksDialer, error) {
	trimmed := strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy url: %w", err)
	}

	keyPath := proxyURL.Query().Get("private-key")
	if keyPath == "" {
		return nil, fmt.Errorf("proxy url missing required 'private-key' query param")
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading SSH private key: %w", err)
	}

	user := ""
	if proxyURL.User != nil {
		user = proxyURL.User.Username()
	}

	return &socksDialer{
		socks5:  proxy.NewSocks5Proxy(proxy.NewHostKey(), log.Default(), time.Minute),
		user:    user,
		sshKey:  string(key),
		sshHost: proxyURL.Host,
	}, nil
}

func (d *socksDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.RLock()
	dial := d.dial
	d.mu.RUnlock()
	if dial != nil {
		return dial(network, address)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dial == nil {
		dial, err := d.socks5.Dialer(d.user, d.sshKey, d.sshHost)
		if err != nil {
			return nil, fmt.Errorf("establishing SOCKS5 proxy: %w", err)
		}
		d.dial = dial
	}
	return d.dial(network, address)
}
