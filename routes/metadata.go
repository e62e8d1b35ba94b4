package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pravachan-index/internal/config"
	"pravachan-index/internal/search"
	"pravachan-index/utils"
)

// SetupMetadataRoutes mounts GET /metadata: distinct category
// values currently present in the index, for building filter UIs.
func SetupMetadataRoutes(router *gin.Engine, cfg *config.Config, lookup search.Lookup) {
	router.GET("/metadata", func(c *gin.Context) {
		values, err := lookup.CategoryValues(c.Request.Context(), cfg.SearchIndexName)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "metadata_failed",
				"Failed to aggregate category values", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"categories": values})
	})
}
