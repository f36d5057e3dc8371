package rdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// UnknownDomain is substituted when an address has no usable reverse name.
const UnknownDomain = "Unknown Domain"

const DefaultTimeout = 5 * time.Second

var ErrNoName = errors.New("no reverse name")

// AddrResolver is satisfied by *net.Resolver.
type AddrResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Client resolves addresses to host names.
type Client struct {
	resolver AddrResolver
	timeout  time.Duration
}

// NewClient returns a Client using resolver, or net.DefaultResolver when nil.
func NewClient(resolver AddrResolver, timeout time.Duration) *Client {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{resolver: resolver, timeout: timeout}
}

// Lookup returns the first name for addr with the trailing dot removed.
func (c *Client) Lookup(ctx context.Context, addr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	names, err := c.resolver.LookupAddr(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("reverse lookup %s: %w", addr, err)
	}
	for _, n := range names {
		if n = strings.TrimSuffix(n, "."); n != "" {
			return n, nil
		}
	}
	return "", fmt.Errorf("reverse lookup %s: %w", addr, ErrNoName)
}
