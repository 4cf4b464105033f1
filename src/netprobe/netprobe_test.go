package netprobe

import (
	"errors"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
)

func ifaces(list ...psnet.InterfaceStat) InterfaceLister {
	return func() ([]psnet.InterfaceStat, error) { return list, nil }
}

func wired(name string, flags []string, addrs ...string) psnet.InterfaceStat {
	var a psnet.InterfaceAddrList
	for _, addr := range addrs {
		a = append(a, psnet.InterfaceAddr{Addr: addr})
	}
	return psnet.InterfaceStat{Name: name, Flags: flags, Addrs: a}
}

func TestNormalizeSSID(t *testing.T) {
	assert.Equal(t, "HOMENET", NormalizeSSID(`  "homenet" `))
	assert.Equal(t, "MY WIFI", NormalizeSSID("My WiFi"))
	assert.Equal(t, "", NormalizeSSID(`""`))
}

func TestHomeNetworkProbe(t *testing.T) {
	up := []string{"up", "broadcast"}

	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{
			name: "matching ssid",
			cfg:  Config{HomeSSID: "HomeNet", SSID: SSIDFunc(func() string { return `"homenet"` })},
			want: true,
		},
		{
			name: "different ssid ignores ethernet",
			cfg: Config{
				HomeSSID:         "HomeNet",
				SSID:             SSIDFunc(func() string { return "CoffeeShop" }),
				EthernetFallback: true,
				Interfaces:       ifaces(wired("eth0", up, "192.168.1.10/24")),
			},
			want: false,
		},
		{
			name: "no home ssid configured",
			cfg:  Config{SSID: SSIDFunc(func() string { return "Anything" })},
			want: false,
		},
		{
			name: "ethernet fallback",
			cfg: Config{
				HomeSSID:         "HomeNet",
				EthernetFallback: true,
				Interfaces:       ifaces(wired("eth0", up, "192.168.1.10/24")),
			},
			want: true,
		},
		{
			name: "fallback disabled",
			cfg: Config{
				HomeSSID:   "HomeNet",
				Interfaces: ifaces(wired("eth0", up, "192.168.1.10/24")),
			},
			want: false,
		},
		{
			name: "only virtual and loopback interfaces",
			cfg: Config{
				EthernetFallback: true,
				Interfaces: ifaces(
					wired("lo", []string{"up", "loopback"}, "127.0.0.1/8"),
					wired("docker0", up, "172.17.0.1/16"),
					wired("veth12ab", up, "10.0.0.2/24"),
				),
			},
			want: false,
		},
		{
			name: "wired interface down",
			cfg: Config{
				EthernetFallback: true,
				Interfaces:       ifaces(wired("enp3s0", []string{"broadcast"}, "192.168.1.10/24")),
			},
			want: false,
		},
		{
			name: "wired interface without ipv4",
			cfg: Config{
				EthernetFallback: true,
				Interfaces:       ifaces(wired("enp3s0", up, "fe80::1/64")),
			},
			want: false,
		},
		{
			name: "interface listing fails",
			cfg: Config{
				EthernetFallback: true,
				Interfaces: func() ([]psnet.InterfaceStat, error) {
					return nil, errors.New("permission denied")
				},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewHomeNetworkProbe(tt.cfg)
			assert.Equal(t, tt.want, p.IsOnTrustedNetwork())
		})
	}
}

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).IsOnTrustedNetwork())
	assert.False(t, Static(false).IsOnTrustedNetwork())
}

func TestCommandSSIDProviderEmpty(t *testing.T) {
	assert.Equal(t, "", CommandSSIDProvider{}.CurrentSSID())
	assert.Equal(t, "", CommandSSIDProvider{Command: []string{"/definitely/not/a/binary"}}.CurrentSSID())
}
