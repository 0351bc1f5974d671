package printer

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

// DiscoverOptions bounds a LAN scan.
type DiscoverOptions struct {
	Port         int
	ProbeTimeout time.Duration
	Workers      int
}

func (o DiscoverOptions) withDefaults() DiscoverOptions {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 300 * time.Millisecond
	}
	if o.Workers <= 0 {
		o.Workers = 50
	}
	return o
}

// LocalSubnet returns the first three octets of the first non-loopback IPv4
// interface address, e.g. "192.168.1".
func LocalSubnet() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", errors.Wrap(err, "list interface addresses")
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.To4() == nil {
			continue
		}
		parts := strings.Split(ipnet.IP.To4().String(), ".")
		return strings.Join(parts[:3], "."), nil
	}
	return "", errors.New("no local IPv4 address found")
}

// Discover probes every host of a /24 subnet ("192.168.1") and returns the
// addresses accepting connections on the printer port.
func Discover(ctx context.Context, subnet string, opts DiscoverOptions) ([]string, error) {
	hosts := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		hosts = append(hosts, fmt.Sprintf("%s.%d", subnet, i))
	}
	return DiscoverHosts(ctx, hosts, opts)
}

// DiscoverHosts probes the given hosts concurrently. Results are host:port
// strings sorted by address.
func DiscoverHosts(ctx context.Context, hosts []string, opts DiscoverOptions) ([]string, error) {
	opts = opts.withDefaults()
	port := strconv.Itoa(opts.Port)

	var (
		mu    sync.Mutex
		found []string
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, h := range hosts {
		addr := net.JoinHostPort(h, port)
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if Probe(ctx, addr, opts.ProbeTimeout) {
				mu.Lock()
				found = append(found, addr)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "scan hosts")
	}

	slices.SortFunc(found, compareAddr)
	return found, nil
}

// Probe reports whether addr accepts a TCP connection within timeout.
func Probe(ctx context.Context, addr string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func compareAddr(a, b string) int {
	pa, errA := netip.ParseAddrPort(a)
	pb, errB := netip.ParseAddrPort(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return pa.Compare(pb)
}
