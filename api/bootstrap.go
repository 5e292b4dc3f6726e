package api

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"proclens/config"
	"proclens/metrics"

	"github.com/pkg/errors"
	probing "github.com/prometheus-community/pro-bing"
	log "github.com/sirupsen/logrus"
)

// BootstrapResult says what EnsureServer did. Informational only.
type BootstrapResult string

const (
	ResultReady    BootstrapResult = "ready"
	ResultLaunched BootstrapResult = "launched"
	ResultSkipped  BootstrapResult = "skipped"
	ResultRemote   BootstrapResult = "remote"
	ResultFailed   BootstrapResult = "failed"
)

// Launcher starts the inference server in the background
type Launcher interface {
	Launch(binary string) error
}

// HostPinger checks whether a host answers ICMP echo
type HostPinger interface {
	Ping(ctx context.Context, host string) (bool, error)
}

// ExecLauncher runs "<binary> serve" detached with output discarded
type ExecLauncher struct{}

func (ExecLauncher) Launch(binary string) error {
	cmd := exec.Command(binary, "serve")
	// nil Stdout/Stderr go to the null device
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start %s serve", binary)
	}
	go cmd.Wait()
	return nil
}

// ProbingPinger sends a single unprivileged ICMP echo
type ProbingPinger struct {
	Timeout time.Duration
}

func (p ProbingPinger) Ping(ctx context.Context, host string) (bool, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, errors.Wrapf(err, "resolve %s", host)
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	pinger.SetPrivileged(false)
	if err := pinger.RunWithContext(ctx); err != nil {
		return false, errors.Wrapf(err, "ping %s", host)
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}

// Bootstrapper makes a best effort to have an inference server listening
// before the first question.
type Bootstrapper struct {
	baseURL      *url.URL
	binary       string
	autoLaunch   bool
	probeTimeout time.Duration
	grace        time.Duration
	launcher     Launcher
	pinger       HostPinger
	metrics      *metrics.Metrics
}

func NewBootstrapper(cfg *config.Config, launcher Launcher, pinger HostPinger, m *metrics.Metrics) (*Bootstrapper, error) {
	u, err := url.Parse(strings.TrimRight(cfg.OllamaURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse ollama url")
	}
	return &Bootstrapper{
		baseURL:      u,
		binary:       cfg.OllamaBinary,
		autoLaunch:   cfg.AutoLaunch,
		probeTimeout: cfg.ProbeTimeout,
		grace:        cfg.LaunchGrace,
		launcher:     launcher,
		pinger:       pinger,
		metrics:      m,
	}, nil
}

// Ready reports whether GET /api/tags answers 200 within the probe timeout
func (b *Bootstrapper) Ready(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL.String()+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// EnsureServer launches the server when it is local and not answering,
// then waits the grace period. It never fails; the outcome is only logged.
func (b *Bootstrapper) EnsureServer(ctx context.Context) BootstrapResult {
	logger := log.WithField("url", b.baseURL.String())

	if b.Ready(ctx) {
		logger.Info("Ollama is running")
		return ResultReady
	}
	if !b.autoLaunch {
		logger.Warn("Ollama is not reachable and auto launch is disabled")
		return ResultSkipped
	}

	host := b.baseURL.Hostname()
	if !isLoopback(host) {
		up, err := b.pinger.Ping(ctx, host)
		logger.WithFields(log.Fields{
			"host_reachable": up,
			"error":          err,
		}).Warn("Remote Ollama is not reachable, not launching a local server")
		return ResultRemote
	}

	if err := b.launcher.Launch(b.binary); err != nil {
		logger.WithError(err).Warn("Failed to launch Ollama")
		return ResultFailed
	}
	b.metrics.ObserveLaunch()
	logger.WithField("grace", b.grace).Info("Launched Ollama, waiting for it to start")

	select {
	case <-time.After(b.grace):
	case <-ctx.Done():
	}
	return ResultLaunched
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
