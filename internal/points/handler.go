package points

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListHandler は GET /points のハンドラーを返します。
// リポジトリ障害の詳細はクライアントに返さず、ログにのみ残します。
func ListHandler(repo Repository, logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *gin.Context) {
		items, err := repo.List(c.Request.Context())
		if err != nil {
			logger.Printf("failed to list points: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
			return
		}
		if items == nil {
			items = []Point{}
		}
		c.JSON(http.StatusOK, items)
	}
}
