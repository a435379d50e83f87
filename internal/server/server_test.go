package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/asciitel/internal/config"
	"github.com/thruflo/asciitel/internal/logging"
	"github.com/thruflo/asciitel/internal/movie"
	"github.com/thruflo/asciitel/internal/player"
	"github.com/thruflo/asciitel/internal/session"
	"github.com/thruflo/asciitel/internal/testutil"
)

func testSettings(t *testing.T, content string, wait player.WaitFunc) session.Settings {
	t.Helper()
	return session.Settings{
		File:      testutil.WriteMovieFile(t, content),
		Framerate: 24,
		Geometry:  movie.DefaultGeometry(),
		Encoding:  "utf-8",
		Wait:      wait,
	}
}

// lockedBuffer collects log output written from server goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startServer runs srv in the background until the test ends.
func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	srv, err := New(cfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	require.Eventually(t, func() bool { return srv.ListenAddr() != "" }, 5*time.Second, 5*time.Millisecond)
	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
		require.NoError(t, <-errCh)
	})
	return srv
}

// expected renders a whole playback the way a session does.
func expected(t *testing.T, s session.Settings) string {
	t.Helper()
	s.Wait = testutil.NoWait
	var buf bytes.Buffer
	res := session.Run(context.Background(), s, &buf, logging.Discard())
	require.Equal(t, player.ExitReasonCompleted, res.Reason)
	return buf.String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	return conn
}

// pausedWait blocks every frame wait until release is closed.
func pausedWait(release <-chan struct{}) player.WaitFunc {
	return func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing address",
			cfg:     Config{Settings: session.Settings{File: "movie.txt"}},
			wantErr: "listen address is required",
		},
		{
			name:    "missing movie",
			cfg:     Config{Addr: ":0"},
			wantErr: "movie file is required",
		},
		{
			name: "valid config",
			cfg:  Config{Addr: ":0", Settings: session.Settings{File: "movie.txt"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv, err := New(tt.cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, srv)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, srv.ListenAddr())
			assert.Empty(t, srv.WebSocketAddr())
			assert.NoError(t, srv.Stop(), "stop before start is a no-op")
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Movie.File = "sw1.txt"
	cfg.Server.Interface = "127.0.0.1"
	cfg.Server.Port = 2323
	cfg.Server.RateLimit = 0

	srv, err := NewFromConfig(&cfg, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2323", srv.cfg.Addr)
	assert.Nil(t, srv.limiter)
	assert.Equal(t, "sw1.txt", srv.cfg.Settings.File)

	_, err = NewFromConfig(nil, nil)
	assert.Error(t, err)
}

func TestServer_StartTwice(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Settings: testSettings(t, testutil.TinyMovie, testutil.NoWait)})
	assert.ErrorContains(t, srv.Start(context.Background()), "already started")
}

func TestServer_ListenError(t *testing.T) {
	t.Parallel()

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	srv, err := New(Config{Addr: occupied.Addr().String(), Settings: testSettings(t, testutil.TinyMovie, nil), Logger: logging.Discard()})
	require.NoError(t, err)
	assert.ErrorContains(t, srv.Start(context.Background()), "failed to listen")
}

func TestServer_TelnetViewerGetsWholeMovie(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, testutil.SampleMovie, testutil.NoWait)
	srv := startServer(t, Config{Settings: settings})

	conn := dial(t, srv.ListenAddr())
	got, err := io.ReadAll(conn)
	require.NoError(t, err)

	assert.Equal(t, expected(t, settings), string(got))
	testutil.AssertClearsOnce(t, string(got))
}

func TestServer_ConcurrentViewersAreIndependent(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, testutil.SampleMovie, testutil.NoWait)
	srv := startServer(t, Config{Settings: settings})
	want := expected(t, settings)

	const viewers = 4
	var wg sync.WaitGroup
	outputs := make([]string, viewers)
	for i := 0; i < viewers; i++ {
		conn := dial(t, srv.ListenAddr())
		wg.Add(1)
		go func(i int, conn net.Conn) {
			defer wg.Done()
			got, _ := io.ReadAll(conn)
			outputs[i] = string(got)
		}(i, conn)
	}
	wg.Wait()

	for i, got := range outputs {
		assert.Equal(t, want, got, "viewer %d", i)
	}
}

func TestServer_DisconnectDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	settings := testSettings(t, testutil.SampleMovie, pausedWait(release))
	srv := startServer(t, Config{Settings: settings})

	quitter := dial(t, srv.ListenAddr())
	stayer := dial(t, srv.ListenAddr())

	testutil.ReadUntil(t, quitter, "/|\\")
	testutil.ReadUntil(t, stayer, "/|\\")
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 2 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, quitter.Close())
	close(release)

	rest, err := io.ReadAll(stayer)
	require.NoError(t, err)
	assert.Contains(t, string(rest), `\o/`)
	assert.Contains(t, string(rest), "  o/")

	require.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestServer_StopEndsRunningSessions(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, testutil.SampleMovie, pausedWait(make(chan struct{})))
	srv, err := New(Config{Addr: "127.0.0.1:0", Settings: settings, Logger: logging.Discard()})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()
	require.Eventually(t, func() bool { return srv.ListenAddr() != "" }, 5*time.Second, 5*time.Millisecond)

	conn := dial(t, srv.ListenAddr())
	testutil.ReadUntil(t, conn, "/|\\")

	require.NoError(t, srv.Stop())
	require.NoError(t, <-errCh)

	_, err = io.ReadAll(conn)
	assert.NoError(t, err, "connection is closed cleanly")
	assert.Zero(t, srv.ActiveSessions())
}

func TestServer_ContextCancelStops(t *testing.T) {
	t.Parallel()

	srv, err := New(Config{Addr: "127.0.0.1:0", Settings: testSettings(t, testutil.TinyMovie, nil), Logger: logging.Discard()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	require.Eventually(t, func() bool { return srv.ListenAddr() != "" }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

func TestServer_RateLimitRejectsTelnet(t *testing.T) {
	t.Parallel()

	logs := &lockedBuffer{}
	srv := startServer(t, Config{
		Settings:  testSettings(t, testutil.TinyMovie, testutil.NoWait),
		RateLimit: RateLimitConfig{MaxAttempts: 1, Window: time.Minute},
		Logger:    logging.NewWithWriter(logs, logging.LevelWarn),
	})

	first, err := io.ReadAll(dial(t, srv.ListenAddr()))
	require.NoError(t, err)
	assert.Contains(t, string(first), "hello")

	second, err := io.ReadAll(dial(t, srv.ListenAddr()))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(second), "Too many connections from 127.0.0.1"), "got %q", second)
	assert.NotContains(t, string(second), "hello")
	assert.Contains(t, logs.String(), "connection rejected")
}

func TestServer_LoadFailureClosesConnection(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, testutil.TinyMovie, testutil.NoWait)
	settings.File = settings.File + ".missing"
	srv := startServer(t, Config{Settings: settings})

	got, err := io.ReadAll(dial(t, srv.ListenAddr()))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func wsURL(srv *Server) string {
	return "ws://" + srv.WebSocketAddr() + "/ws"
}

func TestServer_WebSocketViewer(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, testutil.SampleMovie, testutil.NoWait)
	srv := startServer(t, Config{Settings: settings, WebSocketAddr: "127.0.0.1:0"})
	require.NotEmpty(t, srv.WebSocketAddr())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var screens []string
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		assert.Equal(t, websocket.BinaryMessage, mt)
		screens = append(screens, string(data))
	}

	require.Len(t, screens, testutil.SampleMovieFrames)
	assert.True(t, strings.HasPrefix(screens[0], player.ClearScreen))
	assert.Equal(t, expected(t, settings), strings.Join(screens, ""))
}

func TestServer_WebSocketLargeLatin9ScreenIsOneMessage(t *testing.T) {
	t.Parallel()

	row := strings.Repeat("€", 200) + "\n"
	content := "1\n" + strings.Repeat(row, 59) + "1\n" + strings.Repeat(row, 59)
	settings := testSettings(t, content, testutil.NoWait)
	settings.Geometry = movie.Geometry{ScreenWidth: 200, ScreenHeight: 60}
	settings.Encoding = "iso-8859-15"
	srv := startServer(t, Config{Settings: settings, WebSocketAddr: "127.0.0.1:0"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var screens [][]byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		screens = append(screens, data)
	}

	require.Len(t, screens, 2)
	for _, screen := range screens {
		assert.Equal(t, 59*200, bytes.Count(screen, []byte{0xa4}))
		assert.NotContains(t, string(screen), "€")
	}
}

func TestServer_WebSocketClientClose(t *testing.T) {
	t.Parallel()

	settings := testSettings(t, testutil.SampleMovie, pausedWait(make(chan struct{})))
	srv := startServer(t, Config{Settings: settings, WebSocketAddr: "127.0.0.1:0"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestServer_WebSocketRateLimit(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{
		Settings:      testSettings(t, testutil.TinyMovie, testutil.NoWait),
		WebSocketAddr: "127.0.0.1:0",
		RateLimit:     RateLimitConfig{MaxAttempts: 1, Window: time.Minute},
	})

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestServer_ServesViewerPage(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{
		Settings:      testSettings(t, testutil.TinyMovie, testutil.NoWait),
		WebSocketAddr: "127.0.0.1:0",
	})

	resp, err := http.Get("http://" + srv.WebSocketAddr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/ws")
}
