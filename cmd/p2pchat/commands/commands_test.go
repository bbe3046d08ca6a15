package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfaashh/P2PChat"
	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "p2pchat protocol 1.0.0\n", out)
}

func TestKeygenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")

	out, err := execute(t, "keygen", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Identity written to "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	key, err := readIdentity(path)
	require.NoError(t, err)
	pub, err := publicKeyFor(key)
	require.NoError(t, err)
	assert.Contains(t, out, "Public key: "+pub)

	_, err = execute(t, "keygen", "--out", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "keygen", "--out", path, "--force")
	require.NoError(t, err)
	replaced, err := readIdentity(path)
	require.NoError(t, err)
	assert.False(t, key.Equal(replaced))

	_, err = execute(t, "keygen")
	assert.Error(t, err)
}

func TestReadIdentity_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := readIdentity(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	notBase64 := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(notBase64, []byte("not base64!"), 0o600))
	_, err = readIdentity(notBase64)
	assert.ErrorContains(t, err, "not a base64 seed")

	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("AAAA\n"), 0o600))
	_, err = readIdentity(short)
	assert.ErrorContains(t, err, "seed must be 32 bytes")
}

func TestIdentityIsStableAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity")
	_, err := writeIdentity(path, false)
	require.NoError(t, err)

	s := &settings{Identity: path, Cipher: "aes-256-gcm"}
	publicKeys := make([]string, 2)
	for i := range publicKeys {
		opts, err := nodeOptions(s, p2pchat.NopLogger{}, nil)
		require.NoError(t, err)
		node, err := p2pchat.New(p2pchat.NewConfig("127.0.0.1", 0, opts...))
		require.NoError(t, err)
		publicKeys[i] = node.PublicKey()
		require.NoError(t, node.Stop())
	}
	assert.Equal(t, publicKeys[0], publicKeys[1])
}

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := settingsFor(t, nil, "")
		require.NoError(t, err)

		assert.Equal(t, p2pchat.DefaultHost, s.Host)
		assert.Equal(t, p2pchat.DefaultPort, s.Port)
		assert.Equal(t, "127.0.0.1", s.WebHost)
		assert.Equal(t, 8000, s.WebPort)
		assert.Equal(t, "aes-256-gcm", s.Cipher)
		assert.Equal(t, p2pchat.DefaultReplayWindow, s.ReplayWindow)
		assert.Empty(t, s.Connect)
	})

	t.Run("flags", func(t *testing.T) {
		s, err := settingsFor(t, []string{
			"--port", "9001",
			"--connect", "10.0.0.2:8888",
			"--connect", "10.0.0.3:8888",
			"--cipher", "chacha20-poly1305",
			"--handshake-timeout", "5s",
		}, "")
		require.NoError(t, err)

		assert.Equal(t, 9001, s.Port)
		assert.Equal(t, []string{"10.0.0.2:8888", "10.0.0.3:8888"}, s.Connect)
		assert.Equal(t, "chacha20-poly1305", s.Cipher)
		assert.Equal(t, 5*time.Second, s.HandshakeTimeout)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("P2PCHAT_PORT", "7000")
		t.Setenv("P2PCHAT_WEB_PORT", "7001")
		t.Setenv("P2PCHAT_LOG_LEVEL", "debug")

		s, err := settingsFor(t, nil, "")
		require.NoError(t, err)

		assert.Equal(t, 7000, s.Port)
		assert.Equal(t, 7001, s.WebPort)
		assert.Equal(t, "debug", s.LogLevel)
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "p2pchat.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: 6000\nweb-port: 6001\nqr: true\n"), 0o600))

		s, err := settingsFor(t, []string{"--web-port", "6100"}, path)
		require.NoError(t, err)

		assert.Equal(t, 6000, s.Port)
		assert.Equal(t, 6100, s.WebPort, "flags override the file")
		assert.True(t, s.QR)
	})

	t.Run("bad web port", func(t *testing.T) {
		_, err := settingsFor(t, []string{"--web-port", "70000"}, "")
		assert.ErrorIs(t, err, p2pchat.ErrInvalidPort)
	})
}

// settingsFor parses args into a fresh run command and resolves its
// settings.
func settingsFor(t *testing.T, args []string, configFile string) (*settings, error) {
	t.Helper()
	cmd := runCmd()
	require.NoError(t, cmd.ParseFlags(args))
	v := viper.New()
	require.NoError(t, v.BindPFlags(cmd.Flags()))
	return loadSettings(v, configFile)
}

func TestNodeOptions_Errors(t *testing.T) {
	_, err := nodeOptions(&settings{Cipher: "rot13"}, p2pchat.NopLogger{}, nil)
	assert.ErrorIs(t, err, crypto.ErrUnsupportedSuite)

	_, err = nodeOptions(&settings{Cipher: "aes-256-gcm", Identity: filepath.Join(t.TempDir(), "none")}, p2pchat.NopLogger{}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type recordingLogger struct {
	p2pchat.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestDialTargets(t *testing.T) {
	start := func() *p2pchat.Node {
		node, err := p2pchat.New(p2pchat.NewConfig("127.0.0.1", 0))
		require.NoError(t, err)
		require.NoError(t, node.Start(context.Background()))
		t.Cleanup(func() { _ = node.Stop() })
		return node
	}
	local := start()
	remote := start()

	logger := &recordingLogger{}
	target := remote.Addr().String()
	dialTargets(context.Background(), local, []string{"no-port", "10.0.0.1:0", target}, logger)

	logger.mu.Lock()
	assert.Equal(t, []string{"skipping invalid peer address", "skipping invalid peer address"}, logger.warns)
	logger.mu.Unlock()
	assert.Len(t, local.Peers(), 1, "valid target should be dialed")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := &settings{
		Host:      "127.0.0.1",
		Port:      0,
		WebHost:   "127.0.0.1",
		WebPort:   0,
		Cipher:    "aes-256-gcm",
		LogLevel:  "error",
		LogFormat: "json",
		Metrics:   true,
		QR:        true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(ctx, s, out) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Public key: ")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidLogLevel(t *testing.T) {
	err := run(context.Background(), &settings{LogLevel: "loud", Cipher: "aes-256-gcm"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid log level")
}
