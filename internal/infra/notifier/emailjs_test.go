//go:build unit

package notifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parkwise/internal/infra/notifier"
	"parkwise/internal/pkg/config"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(endpoint string) config.NotifierConfig {
	return config.NotifierConfig{
		Endpoint:    endpoint,
		ServiceID:   "service_1",
		TemplateID:  "template_1",
		PublicKey:   "public_1",
		AccessToken: "private_1",
	}
}

func TestEmailJSDeliver(t *testing.T) {
	t.Run("リクエスト本文を送信する", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		n := notifier.NewEmailJS(srv.Client(), newConfig(srv.URL), nil)
		status, err := n.Deliver(context.Background(), "u1@x.com", map[string]string{"to_email": "u1@x.com"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		want := map[string]any{
			"service_id":      "service_1",
			"template_id":     "template_1",
			"user_id":         "public_1",
			"accessToken":     "private_1",
			"template_params": map[string]any{"to_email": "u1@x.com"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("request body mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("non-200 is returned as status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("rate limited"))
		}))
		defer srv.Close()

		n := notifier.NewEmailJS(srv.Client(), newConfig(srv.URL), nil)
		status, err := n.Deliver(context.Background(), "u1@x.com", nil)

		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, status)
	})

	t.Run("タイムアウト", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		n := notifier.NewEmailJS(srv.Client(), newConfig(srv.URL), nil)
		status, err := n.Deliver(ctx, "u1@x.com", nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, status)
	})
}
