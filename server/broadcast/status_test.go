package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	node, _, _ := newTestNode("n1", []string{"n2", "n3"}, testConfig())
	node.record(5)
	node.record(6)
	node.nextMessageID()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	NewStatus(node).Register(router.Group("/status/node"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status/node", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var info NodeInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, NodeInfo{
		ID:        "n1",
		Peers:     []string{"n2", "n3"},
		Values:    2,
		MessageID: 1,
	}, info)
}
