// Package netprobe decides whether the client is on the trusted home
// network, which gates every access to the shared remote store.
package netprobe

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Probe reports whether the current network is trusted
type Probe interface {
	IsOnTrustedNetwork() bool
}

// Static is a Probe with a fixed answer
type Static bool

func (s Static) IsOnTrustedNetwork() bool { return bool(s) }

// SSIDProvider returns the SSID of the current wireless network, or "" when
// not connected to one or when it can't be determined
type SSIDProvider interface {
	CurrentSSID() string
}

// SSIDFunc adapts a function to SSIDProvider
type SSIDFunc func() string

func (f SSIDFunc) CurrentSSID() string { return f() }

// InterfaceLister lists network interfaces
type InterfaceLister func() ([]psnet.InterfaceStat, error)

// Config configures a HomeNetworkProbe
type Config struct {
	HomeSSID         string
	SSID             SSIDProvider
	EthernetFallback bool
	Logger           *slog.Logger

	// Interfaces overrides interface discovery, for tests
	Interfaces InterfaceLister
}

// HomeNetworkProbe trusts the network when the current SSID matches the
// saved home SSID. Without Wi-Fi it can fall back to trusting any active
// wired connection.
type HomeNetworkProbe struct {
	homeSSID         string
	ssid             SSIDProvider
	ethernetFallback bool
	interfaces       InterfaceLister
	logger           *slog.Logger
}

// NewHomeNetworkProbe creates a probe from cfg
func NewHomeNetworkProbe(cfg Config) *HomeNetworkProbe {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lister := cfg.Interfaces
	if lister == nil {
		lister = func() ([]psnet.InterfaceStat, error) {
			return psnet.Interfaces()
		}
	}
	return &HomeNetworkProbe{
		homeSSID:         NormalizeSSID(cfg.HomeSSID),
		ssid:             cfg.SSID,
		ethernetFallback: cfg.EthernetFallback,
		interfaces:       lister,
		logger:           logger.With("component", "netprobe"),
	}
}

// IsOnTrustedNetwork implements Probe
func (p *HomeNetworkProbe) IsOnTrustedNetwork() bool {
	var current string
	if p.ssid != nil {
		current = NormalizeSSID(p.ssid.CurrentSSID())
	}

	if current != "" {
		trusted := p.homeSSID != "" && current == p.homeSSID
		p.logger.Debug("checked wifi network", "ssid", current, "trusted", trusted)
		return trusted
	}

	if !p.ethernetFallback {
		p.logger.Debug("no wifi network and ethernet fallback disabled")
		return false
	}

	ifaces, err := p.interfaces()
	if err != nil {
		p.logger.Warn("failed to list network interfaces", "error", err)
		return false
	}
	for _, iface := range ifaces {
		if IsWiredUplink(iface) {
			p.logger.Debug("trusting wired connection", "interface", iface.Name)
			return true
		}
	}
	return false
}

// NormalizeSSID trims whitespace and quotes and upper-cases the name so
// platform-specific renderings compare equal
func NormalizeSSID(ssid string) string {
	s := strings.TrimSpace(ssid)
	s = strings.Trim(s, `"`)
	return strings.ToUpper(strings.TrimSpace(s))
}

var virtualMarkers = []string{"virtual", "docker", "veth", "br-", "vmnet", "vbox", "tun", "tap", "wg"}

var wiredPrefixes = []string{"eth", "en"}

// IsWiredUplink reports whether iface is an up, physical, wired interface
// with an IPv4 address
func IsWiredUplink(iface psnet.InterfaceStat) bool {
	if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
		return false
	}

	name := strings.ToLower(iface.Name)
	for _, marker := range virtualMarkers {
		if strings.Contains(name, marker) {
			return false
		}
	}

	wired := false
	for _, prefix := range wiredPrefixes {
		if strings.HasPrefix(name, prefix) {
			wired = true
			break
		}
	}
	if !wired {
		return false
	}

	for _, addr := range iface.Addrs {
		ip := addr.Addr
		if i := strings.IndexByte(ip, '/'); i >= 0 {
			ip = ip[:i]
		}
		if strings.Count(ip, ".") == 3 && !strings.Contains(ip, ":") {
			return true
		}
	}
	return false
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

// CommandSSIDProvider runs a command such as "iwgetid -r" and uses its
// trimmed output as the SSID
type CommandSSIDProvider struct {
	Command []string
	Timeout time.Duration
	Logger  *slog.Logger
}

// CurrentSSID implements SSIDProvider
func (c CommandSSIDProvider) CurrentSSID() string {
	if len(c.Command) == 0 {
		return ""
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...).Output()
	if err != nil {
		if c.Logger != nil {
			c.Logger.Debug("ssid command failed", "command", c.Command, "error", err)
		}
		return ""
	}
	return strings.TrimSpace(string(out))
}
