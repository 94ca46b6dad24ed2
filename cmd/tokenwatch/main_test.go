package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedeqiang/tokenwatch/notify"
)

func fakeBotAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"tokenwatch","username":"tokenwatch_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewBotAPI_TimeoutBoundsSend(t *testing.T) {
	srv := fakeBotAPI(t)

	api, err := newBotAPI("123:abc", srv.URL+"/bot%s/%s", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "tokenwatch_bot", api.Self.UserName)

	start := time.Now()
	err = notify.NewTelegram(api).Send(context.Background(), notify.Notification{SubscriberID: 42, Text: "hello"})
	assert.ErrorIs(t, err, notify.ErrDispatch)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewBotAPI_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newBotAPI("bad", srv.URL+"/bot%s/%s", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}
