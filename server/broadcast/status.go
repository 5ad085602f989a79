package broadcast

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andydunstall/fanout/server/status"
)

// Status is the status handler for the broadcast node.
type Status struct {
	node *Node
}

func NewStatus(node *Node) *Status {
	return &Status{
		node: node,
	}
}

func (s *Status) Register(group *gin.RouterGroup) {
	group.GET("", s.infoRoute)
}

func (s *Status) infoRoute(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.Info())
}

var _ status.Handler = &Status{}
