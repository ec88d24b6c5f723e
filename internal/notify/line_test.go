package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestPushSendsBroadcast(t *testing.T) {
	var got broadcast
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPusher(Config{Endpoint: srv.URL, Token: "tok"}, testEntry())
	require.NoError(t, p.Push("hello"))

	assert.Equal(t, "Bearer tok", auth)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "text", got.Messages[0].Type)
	assert.Equal(t, "hello", got.Messages[0].Text)
}

func TestPushTruncates(t *testing.T) {
	var got broadcast
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	p := NewPusher(Config{Endpoint: srv.URL, Token: "tok", MaxTextLen: 10}, testEntry())
	require.NoError(t, p.Push(strings.Repeat("x", 50)))
	assert.Equal(t, strings.Repeat("x", 10), got.Messages[0].Text)
}

func TestPushTruncatesOnRuneBoundary(t *testing.T) {
	var got broadcast
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	// each 💰 is 4 bytes; a 10-byte cut would land mid-rune
	p := NewPusher(Config{Endpoint: srv.URL, Token: "tok", MaxTextLen: 10}, testEntry())
	require.NoError(t, p.Push(strings.Repeat("💰", 5)))
	assert.Equal(t, "💰💰", got.Messages[0].Text)
	assert.True(t, utf8.ValidString(got.Messages[0].Text))
}

func TestPushFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"message":"rate limited"}`)
	}))
	defer srv.Close()

	p := NewPusher(Config{Endpoint: srv.URL, Token: "tok"}, testEntry())
	err := p.Push("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestPushWithoutTokenIsLogOnly(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewPusher(Config{Endpoint: srv.URL}, testEntry())
	require.NoError(t, p.Push("hello"))
	assert.False(t, called)
}
