package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestParseTXT(t *testing.T) {
	got := parseTXT(append(txtRecords("s1", "host"), "garbage", "empty="))
	assert.Equal(t, map[string]string{"session": "s1", "host": "host", "empty": ""}, got)
}

func TestFromServiceEntry(t *testing.T) {
	tests := []struct {
		name   string
		entry  func() *zeroconf.ServiceEntry
		want   Entry
		wantOK bool
	}{
		{
			name: "ipv4",
			entry: func() *zeroconf.ServiceEntry {
				se := zeroconf.NewServiceEntry("alice", DefaultService, "local.")
				se.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
				se.Port = 7420
				se.Text = txtRecords("s1", "alice")
				return se
			},
			want:   Entry{Instance: "alice", SessionID: "s1", HostID: "alice", Addr: "192.168.1.20:7420"},
			wantOK: true,
		},
		{
			name: "ipv6 only",
			entry: func() *zeroconf.ServiceEntry {
				se := zeroconf.NewServiceEntry("bob", DefaultService, "local.")
				se.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
				se.Port = 9000
				se.Text = txtRecords("s2", "bob")
				return se
			},
			want:   Entry{Instance: "bob", SessionID: "s2", HostID: "bob", Addr: "[fe80::1]:9000"},
			wantOK: true,
		},
		{
			name: "no session record",
			entry: func() *zeroconf.ServiceEntry {
				se := zeroconf.NewServiceEntry("carol", DefaultService, "local.")
				se.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.1")}
				return se
			},
			wantOK: false,
		},
		{
			name: "no address",
			entry: func() *zeroconf.ServiceEntry {
				se := zeroconf.NewServiceEntry("dave", DefaultService, "local.")
				se.Text = txtRecords("s3", "dave")
				return se
			},
			wantOK: false,
		},
		{
			name:   "nil",
			entry:  func() *zeroconf.ServiceEntry { return nil },
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := fromServiceEntry(tt.entry())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNewAnnouncer_DefaultService(t *testing.T) {
	assert.Equal(t, DefaultService, NewAnnouncer("").Service)
	assert.Equal(t, "_custom._tcp", NewAnnouncer("_custom._tcp").Service)
}
