package api

import (
	"github.com/gin-gonic/gin"

	"github.com/blnkfinance/esusu"
	"github.com/blnkfinance/esusu/api/middleware"
	"github.com/blnkfinance/esusu/config"
)

type Api struct {
	esusu  *esusu.Esusu
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/circles", a.CreateCircle)
	router.GET("/circles", a.GetAllCircles)
	router.GET("/circles/:id", a.GetCircle)
	router.POST("/circles/:id/members", a.JoinCircle)
	router.POST("/circles/:id/contributions", a.RecordContribution)
	router.GET("/circles/:id/loans", a.GetCircleBorrowRequests)
	router.GET("/circles/:id/transactions", a.GetCircleTransactions)

	router.POST("/loans", a.SubmitBorrowRequest)
	router.GET("/loans/:id", a.GetBorrowRequest)
	router.POST("/loans/:id/approve", a.ApproveBorrowRequest)
	router.POST("/loans/:id/reject", a.RejectBorrowRequest)
	router.POST("/loans/:id/repay", a.RepayLoan)
	router.GET("/loans/:id/quote", a.GetRepaymentQuote)

	router.GET("/balances/:address", a.GetLedgerBalance)
	router.GET("/transactions/:id", a.GetTransaction)
	router.GET("/addresses/:address/transactions", a.GetAddressTransactions)

	return a.router
}

func NewAPI(e *esusu.Esusu) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{esusu: e, router: r}
}
