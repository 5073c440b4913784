package actions

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReleasePendingBonusesRequest is the operator batch release payload.
type ReleasePendingBonusesRequest struct {
	IDs []uint64 `json:"ids" binding:"required"`
}

// ReleasePendingBonuses godoc
// swagger:route POST /pending-bonuses/release
// Releases a batch of manually held pending bonuses, one outcome per id.
func (actions *Actions) ReleasePendingBonuses(c *gin.Context) {
	var request ReleasePendingBonusesRequest
	if err := c.ShouldBindJSON(&request); err != nil || len(request.IDs) == 0 {
		abortWithError(c, http.StatusBadRequest, "Provide a non empty list of pending bonus ids")
		return
	}
	results, err := actions.service.ReleasePendingBonuses(request.IDs)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to release pending bonuses")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GetPendingBonuses godoc
// swagger:route GET /users/:user_id/pending-bonuses
func (actions *Actions) GetPendingBonuses(c *gin.Context) {
	userID, ok := getParamAsUint64(c, "user_id")
	if !ok {
		abortWithError(c, http.StatusBadRequest, "Invalid user id")
		return
	}
	page := getQueryAsInt(c, "page", 1)
	limit := getQueryAsInt(c, "limit", 50)
	data, err := actions.service.GetPendingBonuses(userID, limit, page)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to load pending bonuses")
		return
	}
	c.JSON(http.StatusOK, data)
}
