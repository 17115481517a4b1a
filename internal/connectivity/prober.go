package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
)

const userAgent = "fieldsync/1.0"

// HTTPProber checks for a usable interface and then fetches a connectivity
// check URL. Only the expected status counts as reachable: a 200 with a login
// page or a redirect is what captive portals return.
type HTTPProber struct {
	url            string
	expectedStatus int
	client         *http.Client
	logger         *slog.Logger
	hasInterface   func() (bool, error)
}

// NewHTTPProber builds a prober from the connectivity section of cfg.
func NewHTTPProber(cfg *config.Config, logger *slog.Logger) *HTTPProber {
	timeout := time.Duration(cfg.Connectivity.ProbeTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		url:            strings.TrimSpace(cfg.Connectivity.ProbeURL),
		expectedStatus: cfg.Connectivity.ProbeExpectedStatus,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:       logging.NewComponentLogger(logger, "connectivity"),
		hasInterface: hasUsableInterface,
	}
}

// WithInterfaceCheck replaces the interface inspection, mainly for tests.
func (p *HTTPProber) WithInterfaceCheck(fn func() (bool, error)) *HTTPProber {
	if fn != nil {
		p.hasInterface = fn
	}
	return p
}

// Probe returns the current observation. Errors are folded into the state.
func (p *HTTPProber) Probe(ctx context.Context) State {
	connected, err := p.hasInterface()
	if err != nil {
		p.logger.Debug("interface inspection failed", logging.Error(err))
	}
	if !connected {
		return State{}
	}
	if err := p.check(ctx); err != nil {
		p.logger.Debug("reachability probe failed",
			logging.String("url", p.url),
			logging.Error(err),
		)
		return State{Connected: true}
	}
	return State{Connected: true, InternetReachable: true}
}

func (p *HTTPProber) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != p.expectedStatus {
		return fmt.Errorf("probe returned %d, expected %d", resp.StatusCode, p.expectedStatus)
	}
	return nil
}

func hasUsableInterface() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return true, nil
	}
	return false, nil
}
