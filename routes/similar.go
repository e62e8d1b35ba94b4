package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pravachan-index/internal/config"
	"pravachan-index/internal/search"
	"pravachan-index/utils"
)

// SetupSimilarRoutes mounts GET /similar-documents/:chunk_id:
// seeds a vector-only k-NN search from a chunk's own stored embedding,
// excluding chunks belonging to the same document.
func SetupSimilarRoutes(router *gin.Engine, cfg *config.Config, lookup search.Lookup) {
	router.GET("/similar-documents/:chunk_id", func(c *gin.Context) {
		chunkID := c.Param("chunk_id")

		topK := cfg.DefaultPageSize
		if raw := c.Query("top_k"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				topK = n
			}
		}

		ctx := c.Request.Context()
		seed, vector, err := lookup.GetChunk(ctx, cfg.SearchIndexName, chunkID)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "lookup_failed",
				"Failed to fetch seed chunk", gin.H{"error": err.Error()})
			return
		}
		if seed == nil {
			utils.RespondWithNotFound(c, "No chunk found for the given id")
			return
		}
		if len(vector) == 0 {
			utils.RespondWithError(c, http.StatusUnprocessableEntity, "no_vector",
				"Chunk has no stored embedding to seed similarity from", nil)
			return
		}

		hits, err := lookup.SimilarByVector(ctx, cfg.SearchIndexName, vector, seed.DocID, topK)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "similar_search_failed",
				"Similarity search failed", gin.H{"error": err.Error()})
			return
		}

		items := make([]ResultItem, 0, len(hits))
		for _, h := range hits {
			items = append(items, ResultItem{
				ChunkID:          h.ChunkID,
				DocID:            h.DocID,
				PageNumber:       h.PageNum,
				ContentSnippet:   snippet(h.Text),
				Score:            h.Score,
				OriginalFilename: h.OriginalFilename,
				Metadata:         h.Categories,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"chunk_id": chunkID,
			"results":  items,
		})
	})
}
