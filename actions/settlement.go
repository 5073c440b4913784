package actions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/vitanet-network/settlement_api/service"
	"gitlab.com/vitanet-network/settlement_api/service/settlement"
)

func settlementStatus(success bool, kind settlement.ErrorKind) int {
	if success {
		return http.StatusOK
	}
	switch kind {
	case settlement.ErrorKind_LockContention:
		return http.StatusConflict
	case settlement.ErrorKind_InvalidPeriod:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// PreviewWeeklySettlement godoc
// swagger:route GET /settlements/weekly/:week_key/preview
// Computes a weekly settlement dry run without persisting anything.
func (actions *Actions) PreviewWeeklySettlement(c *gin.Context) {
	result := actions.service.PreviewWeeklySettlement(c.Param("week_key"))
	c.JSON(settlementStatus(result.Success, result.ErrorKind), result)
}

// ExecuteWeeklySettlement godoc
// swagger:route POST /settlements/weekly/:week_key
// Finalizes a weekly settlement. Re-invoking a finalized week returns the
// stored result. force=true bypasses the period lock.
func (actions *Actions) ExecuteWeeklySettlement(c *gin.Context) {
	force := getQueryAsBool(c, "force")
	result := actions.service.ExecuteWeeklySettlement(c.Param("week_key"), force)
	c.JSON(settlementStatus(result.Success, result.ErrorKind), result)
}

// PreviewQuarterlySettlement godoc
// swagger:route GET /settlements/quarterly/:quarter_key/preview
func (actions *Actions) PreviewQuarterlySettlement(c *gin.Context) {
	result := actions.service.PreviewQuarterlySettlement(c.Param("quarter_key"))
	c.JSON(settlementStatus(result.Success, result.ErrorKind), result)
}

// ExecuteQuarterlySettlement godoc
// swagger:route POST /settlements/quarterly/:quarter_key
func (actions *Actions) ExecuteQuarterlySettlement(c *gin.Context) {
	force := getQueryAsBool(c, "force")
	result := actions.service.ExecuteQuarterlySettlement(c.Param("quarter_key"), force)
	c.JSON(settlementStatus(result.Success, result.ErrorKind), result)
}

// GetWeeklySettlements godoc
// swagger:route GET /settlements/weekly
func (actions *Actions) GetWeeklySettlements(c *gin.Context) {
	page := getQueryAsInt(c, "page", 1)
	limit := getQueryAsInt(c, "limit", 20)
	data, err := actions.service.GetWeeklySettlements(limit, page)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to list settlements")
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetKFactorDetails godoc
// swagger:route GET /settlements/weekly/:week_key/k-factor
func (actions *Actions) GetKFactorDetails(c *gin.Context) {
	data, err := actions.service.GetKFactorDetails(c.Param("week_key"))
	if err == service.ErrWeekNotSettled {
		abortWithError(c, http.StatusNotFound, "Week has not been settled")
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to load settlement")
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetPeriodTransactions godoc
// swagger:route GET /transactions/:period_key
func (actions *Actions) GetPeriodTransactions(c *gin.Context) {
	page := getQueryAsInt(c, "page", 1)
	limit := getQueryAsInt(c, "limit", 50)
	data, err := actions.service.GetPeriodTransactions(c.Param("period_key"), limit, page)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Unable to list transactions")
		return
	}
	c.JSON(http.StatusOK, data)
}
