package whiskey

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/AesirMachina/whiskey/internal/settings"
	"github.com/AesirMachina/whiskey/internal/xport"
)

// Client dials SPDY sessions to one or more origins, sharing a single
// settings.Store across them: every Session this Client dials writes the
// SETTINGS its peer asks to persist into that store. A new Session does not
// read the store, so persisted values are not applied on a later dial.
type Client struct {
	cfg   Config
	store *settings.Store

	// DialTimeout bounds the TCP/TLS handshake. Zero means no timeout.
	DialTimeout time.Duration

	// TLSConfig is used for "https"-scheme origins. A nil value uses
	// tls.Config{} defaults plus NextProtos set to advertise spdy/3.1.
	TLSConfig *tls.Config
}

// NewClient creates a Client with its own settings store.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, store: settings.NewStore()}
}

// Dial opens a new Session to origin. scheme must be "http" or "https";
// "https" negotiates TLS with NPN/ALPN set to spdy/3.1.
func (c *Client) Dial(scheme, host string, port int) (*Session, error) {
	origin := settings.Origin{Scheme: scheme, Host: host, Port: port}
	addr := fmt.Sprintf("%s:%d", host, port)

	conn, err := c.dialConn(scheme, addr)
	if err != nil {
		return nil, err
	}

	return NewSession(origin, xport.NewConnTransport(conn), c.cfg, c.store)
}

func (c *Client) dialConn(scheme, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.DialTimeout}
	switch scheme {
	case "http":
		return dialer.Dial("tcp", addr)
	case "https":
		tlsCfg := c.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		if len(tlsCfg.NextProtos) == 0 {
			tlsCfg = tlsCfg.Clone()
			tlsCfg.NextProtos = []string{"spdy/3.1"}
		}
		return tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	default:
		return nil, fmt.Errorf("spdy: unsupported scheme %q", scheme)
	}
}
