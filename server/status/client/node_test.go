package client

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/fanout/server/broadcast"
)

func TestNode_Info(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/status/node", r.URL.Path)
			//nolint
			w.Write([]byte(`{"id":"n1","peers":["n2"],"values":3,"message_id":7,"retries":1,"deferred":0}`))
		}))
		defer server.Close()

		u, err := url.Parse(server.URL)
		require.NoError(t, err)

		info, err := NewNode(NewClient(u)).Info()
		require.NoError(t, err)
		assert.Equal(t, &broadcast.NodeInfo{
			ID:        "n1",
			Peers:     []string{"n2"},
			Values:    3,
			MessageID: 7,
			Retries:   1,
		}, info)
	})

	t.Run("bad status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		u, err := url.Parse(server.URL)
		require.NoError(t, err)

		_, err = NewNode(NewClient(u)).Info()
		assert.ErrorContains(t, err, "bad status: 404")
	})
}
