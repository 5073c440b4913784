package actions

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUserPVSummary godoc
// swagger:route GET /users/:user_id/pv
// Returns the user's current left/right/weak/strong PV position.
func (actions *Actions) GetUserPVSummary(c *gin.Context) {
	userID, ok := getParamAsUint64(c, "user_id")
	if !ok {
		abortWithError(c, http.StatusBadRequest, "Invalid user id")
		return
	}
	data, err := actions.service.GetUserPVSummary(userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to load PV summary")
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetUserLedger godoc
// swagger:route GET /users/:user_id/ledger
func (actions *Actions) GetUserLedger(c *gin.Context) {
	userID, ok := getParamAsUint64(c, "user_id")
	if !ok {
		abortWithError(c, http.StatusBadRequest, "Invalid user id")
		return
	}
	page := getQueryAsInt(c, "page", 1)
	limit := getQueryAsInt(c, "limit", 50)
	data, err := actions.service.GetUserLedger(userID, limit, page)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to load ledger")
		return
	}
	c.JSON(http.StatusOK, data)
}
