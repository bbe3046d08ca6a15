package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	qrterminal "github.com/mdp/qrterminal/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Alfaashh/P2PChat"
	"github.com/Alfaashh/P2PChat/bridge"
	"github.com/Alfaashh/P2PChat/internal/logging"
	prommetrics "github.com/Alfaashh/P2PChat/prometheus"
	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

const shutdownTimeout = 10 * time.Second

// settings is the resolved run configuration.
type settings struct {
	Host             string
	Port             int
	WebHost          string
	WebPort          int
	Connect          []string
	Identity         string
	Cipher           string
	LogLevel         string
	LogFormat        string
	QR               bool
	Metrics          bool
	HandshakeTimeout time.Duration
	RateLimit        float64
	RateBurst        int
	ReplayWindow     int
	MaxFrameSize     int
}

func runCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a chat node and its local WebSocket bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(v, configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, s, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "YAML config file")
	f.String("host", p2pchat.DefaultHost, "interface for the peer listener")
	f.Int("port", p2pchat.DefaultPort, "port for the peer listener")
	f.String("web-host", "127.0.0.1", "interface for the bridge and health endpoints")
	f.Int("web-port", 8000, "port for the bridge and health endpoints")
	f.StringArray("connect", nil, "peer to dial at startup as host:port (repeatable)")
	f.String("identity", "", "identity file written by keygen (default: fresh key per run)")
	f.String("cipher", crypto.SuiteAES256GCM.String(), "data frame cipher: aes-256-gcm or chacha20-poly1305")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", "console", "log format: console or json")
	f.Bool("qr", false, "print the public key as a QR code")
	f.Bool("metrics", false, "serve Prometheus metrics at /metrics")
	f.Duration("handshake-timeout", 0, "close connections without a handshake after this long (0 disables)")
	f.Float64("rate-limit", 0, "inbound frames per second per connection (0 disables)")
	f.Int("rate-burst", 0, "burst size for --rate-limit")
	f.Int("replay-window", p2pchat.DefaultReplayWindow, "nonces remembered per connection (negative disables)")
	f.Int("max-frame-size", p2pchat.DefaultMaxFrameSize, "maximum inbound frame size in bytes")

	_ = v.BindPFlags(f)
	return cmd
}

func loadSettings(v *viper.Viper, configFile string) (*settings, error) {
	v.SetEnvPrefix("P2PCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	s := &settings{
		Host:             v.GetString("host"),
		Port:             v.GetInt("port"),
		WebHost:          v.GetString("web-host"),
		WebPort:          v.GetInt("web-port"),
		Connect:          v.GetStringSlice("connect"),
		Identity:         v.GetString("identity"),
		Cipher:           v.GetString("cipher"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
		QR:               v.GetBool("qr"),
		Metrics:          v.GetBool("metrics"),
		HandshakeTimeout: v.GetDuration("handshake-timeout"),
		RateLimit:        v.GetFloat64("rate-limit"),
		RateBurst:        v.GetInt("rate-burst"),
		ReplayWindow:     v.GetInt("replay-window"),
		MaxFrameSize:     v.GetInt("max-frame-size"),
	}
	if err := p2pchat.ValidatePort(s.WebPort); err != nil {
		return nil, fmt.Errorf("--web-port: %w", err)
	}
	return s, nil
}

// nodeOptions translates settings into node options.
func nodeOptions(s *settings, logger p2pchat.Logger, metrics p2pchat.Metrics) ([]p2pchat.ConfigOption, error) {
	suite, err := crypto.ParseSuite(s.Cipher)
	if err != nil {
		return nil, err
	}
	opts := []p2pchat.ConfigOption{
		p2pchat.WithCipherSuite(suite),
		p2pchat.WithLogger(logger),
		p2pchat.WithHandshakeTimeout(s.HandshakeTimeout),
		p2pchat.WithFrameRateLimit(s.RateLimit, s.RateBurst),
		p2pchat.WithReplayWindow(s.ReplayWindow),
		p2pchat.WithMaxFrameSize(s.MaxFrameSize),
	}
	if metrics != nil {
		opts = append(opts, p2pchat.WithMetrics(metrics))
	}
	if s.Identity != "" {
		key, err := readIdentity(s.Identity)
		if err != nil {
			return nil, err
		}
		opts = append(opts, p2pchat.WithIdentityKey(key))
	}
	return opts, nil
}

func run(ctx context.Context, s *settings, out io.Writer) error {
	zl, err := logging.New(s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.Wrap(zl)

	var (
		registry *prometheus.Registry
		metrics  p2pchat.Metrics
	)
	if s.Metrics {
		registry = prometheus.NewRegistry()
		metrics = prommetrics.NewMetricsWithRegisterer("", registry)
	}

	opts, err := nodeOptions(s, logger.Named("node"), metrics)
	if err != nil {
		return err
	}
	node, err := p2pchat.New(p2pchat.NewConfig(s.Host, s.Port, opts...))
	if err != nil {
		return err
	}
	if err := node.Start(ctx); err != nil {
		_ = node.Stop()
		return err
	}

	fmt.Fprintf(out, "Listening on %s\nPublic key: %s\n", node.Addr(), node.PublicKey())
	if s.QR {
		qrterminal.GenerateWithConfig(node.PublicKey(), qrterminal.Config{
			Level:     qrterminal.M,
			Writer:    out,
			BlackChar: qrterminal.BLACK,
			WhiteChar: qrterminal.WHITE,
			QuietZone: 1,
		})
	}

	br := bridge.New(node, bridge.WithLogger(logger.Named("bridge")))

	mux := http.NewServeMux()
	mux.Handle("/ws", br)
	mux.Handle("/healthz", p2pchat.HealthHandler(node))
	mux.Handle("/livez", p2pchat.LivenessHandler(node))
	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.WebHost, strconv.Itoa(s.WebPort)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("bridge listening", "addr", "ws://"+srv.Addr+"/ws")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for e := range node.Events() {
			if e.IsError() {
				logger.Debug("connection event", "peer", e.Identity, "state", e.State.String(), "error", e.Error)
				continue
			}
			logger.Debug("connection event", "peer", e.Identity, "state", e.State.String())
		}
		return nil
	})

	g.Go(func() error {
		dialTargets(gctx, node, s.Connect, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		_ = br.Close()
		if stopErr := node.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
		return err
	})

	return g.Wait()
}

// dialTargets connects to each host:port in order. Bad entries and
// failed dials are logged and skipped.
func dialTargets(ctx context.Context, node *p2pchat.Node, targets []string, logger p2pchat.Logger) {
	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}
		host, port, err := p2pchat.ParsePeerAddress(target)
		if err != nil {
			logger.Warn("skipping invalid peer address", "target", target, "error", err)
			continue
		}
		identity, err := node.Connect(ctx, host, port)
		if err != nil {
			logger.Warn("failed to connect", "target", target, "error", err)
			continue
		}
		logger.Info("connected", "peer", identity)
	}
}
