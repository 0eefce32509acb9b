package mailer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendgrid_Send(t *testing.T) {
	t.Run("successful delivery", func(t *testing.T) {
		var gotAuth, gotBody string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v3/mail/send", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			gotBody = string(body)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		sg := &Sendgrid{key: "sg-key", from: "alerts@example.com", host: server.URL}
		err := sg.Send(context.Background(), Email{
			To:      []string{"student@example.com"},
			Subject: "Canvas Daily Digest — Mar 10, 2025",
			HTML:    "<p>digest</p>",
		})
		require.NoError(t, err)

		assert.Equal(t, "Bearer sg-key", gotAuth)
		assert.Contains(t, gotBody, `"student@example.com"`)
		assert.Contains(t, gotBody, `"alerts@example.com"`)
		assert.Contains(t, gotBody, "Canvas Daily Digest")
		assert.Contains(t, gotBody, "text/html")
	})

	t.Run("api rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
		}))
		defer server.Close()

		sg := &Sendgrid{key: "bad", from: "alerts@example.com", host: server.URL}
		err := sg.Send(context.Background(), Email{To: []string{"x@example.com"}, Subject: "T", HTML: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 401")
		assert.Contains(t, err.Error(), "bad key")
	})

	t.Run("no recipients", func(t *testing.T) {
		sg := NewSendgrid("key", "alerts@example.com")
		err := sg.Send(context.Background(), Email{Subject: "T", HTML: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no recipients")
	})
}
