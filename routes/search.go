package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pravachan-index/internal/config"
	"pravachan-index/internal/search"
	"pravachan-index/utils"
)

// SetupSearchRoutes mounts POST /search. No auth middleware: this API
// has no tenants or users to authenticate.
func SetupSearchRoutes(router *gin.Engine, cfg *config.Config, searcher *search.Searcher) {
	router.POST("/search", func(c *gin.Context) {
		var body SearchRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", gin.H{"error": err.Error()})
			return
		}

		req := body.toDomain()
		if req.PageSize <= 0 {
			req.PageSize = cfg.DefaultPageSize
		}
		if req.PageNumber <= 0 {
			req.PageNumber = 1
		}
		if req.ProximityDistance <= 0 {
			req.ProximityDistance = cfg.ProximityDistance
		}

		resp, err := searcher.Search(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "search_failed",
				"Search cluster query failed", gin.H{"error": err.Error()})
			return
		}

		pravachan, granth := bucketize(resp)
		c.JSON(http.StatusOK, SearchResponseBody{
			PravachanResults: pravachan,
			GranthResults:    granth,
			Suggestions:      []string{},
			HighlightWords:   resp.HighlightWords,
			Degraded:         resp.Degraded,
		})
	})
}
