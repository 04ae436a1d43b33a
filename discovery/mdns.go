// Package discovery announces hosted sessions on the local network over mDNS
// and finds them again from the joining side.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	DefaultService = "_liveshare._tcp"
	domainLocal    = "local."

	txtSession = "session"
	txtHost    = "host"
)

// Entry is one announced session.
type Entry struct {
	Instance  string
	SessionID string
	HostID    string
	Addr      string
}

type Announcer struct {
	Service string
}

func NewAnnouncer(service string) *Announcer {
	if service == "" {
		service = DefaultService
	}
	return &Announcer{Service: service}
}

// Announce registers the session until the returned stop func is called.
func (a *Announcer) Announce(instance, sessionID, hostID string, port int) (func(), error) {
	server, err := zeroconf.Register(instance, a.Service, domainLocal, port, txtRecords(sessionID, hostID), nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register %s: %w", a.Service, err)
	}
	slog.Info("mDNS service registered", "service", a.Service, "instance", instance, "port", port)
	return server.Shutdown, nil
}

// Browse collects announced sessions until ctx is done.
func Browse(ctx context.Context, service string) ([]Entry, error) {
	var found []Entry
	err := browse(ctx, service, func(e Entry) bool {
		found = append(found, e)
		return true
	})
	return found, err
}

// First returns the first announced session, or an error once ctx is done
// without finding one.
func First(ctx context.Context, service string) (Entry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var first *Entry
	if err := browse(ctx, service, func(e Entry) bool {
		first = &e
		return false
	}); err != nil {
		return Entry{}, err
	}
	if first == nil {
		return Entry{}, fmt.Errorf("no session announced under %s", service)
	}
	return *first, nil
}

func browse(ctx context.Context, service string, visit func(Entry) bool) error {
	if service == "" {
		service = DefaultService
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("mdns resolver: %w", err)
	}
	browseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseCtx, service, domainLocal, entries); err != nil {
		return fmt.Errorf("mdns browse %s: %w", service, err)
	}
	for {
		select {
		case se, ok := <-entries:
			if !ok {
				return nil
			}
			e, ok := fromServiceEntry(se)
			if !ok {
				continue
			}
			slog.Debug("mDNS discovered session", "instance", e.Instance, "addr", e.Addr, "sessionId", e.SessionID)
			if !visit(e) {
				return nil
			}
		case <-browseCtx.Done():
			return nil
		}
	}
}

func txtRecords(sessionID, hostID string) []string {
	return []string{txtSession + "=" + sessionID, txtHost + "=" + hostID}
}

func parseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, r := range records {
		k, v, ok := strings.Cut(r, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func fromServiceEntry(se *zeroconf.ServiceEntry) (Entry, bool) {
	if se == nil {
		return Entry{}, false
	}
	txt := parseTXT(se.Text)
	sessionID := txt[txtSession]
	if sessionID == "" {
		return Entry{}, false
	}
	var ip net.IP
	switch {
	case len(se.AddrIPv4) > 0:
		ip = se.AddrIPv4[0]
	case len(se.AddrIPv6) > 0:
		ip = se.AddrIPv6[0]
	default:
		return Entry{}, false
	}
	return Entry{
		Instance:  se.Instance,
		SessionID: sessionID,
		HostID:    txt[txtHost],
		Addr:      net.JoinHostPort(ip.String(), strconv.Itoa(se.Port)),
	}, true
}
