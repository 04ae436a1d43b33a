package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// echoServer upgrades every request and echoes frames until the peer leaves.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, Options{})
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			if err := conn.Write(context.Background(), data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestConn_ReadWrite(t *testing.T) {
	ts := echoServer(t)
	ctx := context.Background()

	conn, err := Dial(ctx, wsURL(ts.URL), Options{})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Write(ctx, []byte(`{"type":"close"}`)))
	data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"close"}`, string(data))
	assert.NotEmpty(t, conn.RemoteAddr())
}

func TestConn_PeerCloseIsEOF(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, Options{})
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer ts.Close()

	conn, err := Dial(context.Background(), wsURL(ts.URL), Options{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_AbruptDisconnectIsEOF(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		raw.Close()
	}))
	defer ts.Close()

	conn, err := Dial(context.Background(), wsURL(ts.URL), Options{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_LocalCloseUnblocksRead(t *testing.T) {
	ts := echoServer(t)
	conn, err := Dial(context.Background(), wsURL(ts.URL), Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Read(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestConn_CancelledContext(t *testing.T) {
	ts := echoServer(t)
	conn, err := Dial(context.Background(), wsURL(ts.URL), Options{})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, conn.Write(ctx, []byte("x")), context.Canceled)
	_, err = conn.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), "ws://"+addr+"/ws", Options{})
	assert.Error(t, err)
}

func TestDial_RejectedUpgrade(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := Dial(context.Background(), wsURL(ts.URL), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, defaultWriteWait, o.WriteWait)
	assert.Equal(t, defaultPongWait, o.PongWait)
	assert.Equal(t, int64(defaultMaxMessageSize), o.MaxMessageSize)
	assert.Equal(t, 54*time.Second, o.pingPeriod())
}
