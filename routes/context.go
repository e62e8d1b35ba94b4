package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pravachan-index/internal/config"
	"pravachan-index/internal/search"
	"pravachan-index/utils"
)

// contextEntry is one paragraph within a /context response, or null when
// there is no neighbor (first/last paragraph of a document).
type contextEntry struct {
	ChunkID        string `json:"chunk_id"`
	PageNumber     int    `json:"page_number"`
	SeqNum         int    `json:"seq_num"`
	ContentSnippet string `json:"content_snippet"`
}

func toContextEntry(r *search.RankedResult) *contextEntry {
	if r == nil {
		return nil
	}
	return &contextEntry{
		ChunkID:        r.ChunkID,
		PageNumber:     r.PageNum,
		SeqNum:         r.SeqNum,
		ContentSnippet: r.Text,
	}
}

// SetupContextRoutes mounts GET /context/:chunk_id: assembles
// the {previous, current, next} triple around a chunk using its doc_id
// and seq_num, the ordering assigned by the paragraph generator.
func SetupContextRoutes(router *gin.Engine, cfg *config.Config, lookup search.Lookup) {
	router.GET("/context/:chunk_id", func(c *gin.Context) {
		chunkID := c.Param("chunk_id")
		ctx := c.Request.Context()

		current, _, err := lookup.GetChunk(ctx, cfg.SearchIndexName, chunkID)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "lookup_failed",
				"Failed to fetch chunk", gin.H{"error": err.Error()})
			return
		}
		if current == nil {
			utils.RespondWithNotFound(c, "No chunk found for the given id")
			return
		}

		prev, err := lookup.BySeqNum(ctx, cfg.SearchIndexName, current.DocID, current.SeqNum-1)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "lookup_failed",
				"Failed to fetch previous paragraph", gin.H{"error": err.Error()})
			return
		}
		next, err := lookup.BySeqNum(ctx, cfg.SearchIndexName, current.DocID, current.SeqNum+1)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "lookup_failed",
				"Failed to fetch next paragraph", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"previous": toContextEntry(prev),
			"current":  toContextEntry(current),
			"next":     toContextEntry(next),
		})
	})
}
