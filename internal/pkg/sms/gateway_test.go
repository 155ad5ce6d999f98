package sms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeyhq/gatekey/internal/pkg/sms"
)

func TestGateway_Send(t *testing.T) {
	t.Parallel()

	t.Run("delivers form payload", func(t *testing.T) {
		t.Parallel()

		var gotMobile, gotMsg, gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotMobile = r.PostFormValue("mobile")
			gotMsg = r.PostFormValue("msg")
			gotKey = r.Header.Get("apikey")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		gw, err := sms.NewGateway(sms.GatewayConfig{URL: srv.URL, APIKey: "k1", SenderID: "GATEKEY"})
		require.NoError(t, err)

		err = gw.Send(context.Background(), sms.Message{To: "+15550001111", Body: "Your code is 123456"})
		require.NoError(t, err)
		assert.Equal(t, "+15550001111", gotMobile)
		assert.Equal(t, "Your code is 123456", gotMsg)
		assert.Equal(t, "k1", gotKey)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		gw, err := sms.NewGateway(sms.GatewayConfig{URL: srv.URL})
		require.NoError(t, err)

		err = gw.Send(context.Background(), sms.Message{To: "+15550001111", Body: "hi"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		gw, err := sms.NewGateway(sms.GatewayConfig{URL: srv.URL})
		require.NoError(t, err)

		err = gw.Send(context.Background(), sms.Message{To: "+15550001111", Body: "hi"})
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("rejects empty recipient", func(t *testing.T) {
		t.Parallel()

		gw, err := sms.NewGateway(sms.GatewayConfig{URL: "http://localhost:9"})
		require.NoError(t, err)

		err = gw.Send(context.Background(), sms.Message{Body: "hi"})
		assert.ErrorIs(t, err, sms.ErrNoRecipient)
	})

	t.Run("requires url", func(t *testing.T) {
		t.Parallel()

		_, err := sms.NewGateway(sms.GatewayConfig{})
		assert.ErrorIs(t, err, sms.ErrGatewayURLRequired)
	})
}
