package server

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"libra-pay/internal/auth"
	"libra-pay/internal/database"
	"libra-pay/internal/domain"
	"libra-pay/internal/hub"
	"libra-pay/internal/infrastructure/payment"
	"libra-pay/internal/service"
)

type Server struct {
	db            *sql.DB
	payments      service.PaymentService
	hub           *hub.Hub
	jwtSecret     []byte
	gatewayAPIKey string
	logger        *zap.Logger
	router        *gin.Engine
}

func New(
	db *sql.DB,
	payments service.PaymentService,
	h *hub.Hub,
	jwtSecret []byte,
	gatewayAPIKey string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		db:            db,
		payments:      payments,
		hub:           h,
		jwtSecret:     jwtSecret,
		gatewayAPIKey: gatewayAPIKey,
		logger:        logger,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	r.GET("/health", s.handleHealth)
	r.POST("/api/gateway/webhook", s.handleWebhook)

	authed := r.Group("/", auth.Middleware(s.jwtSecret))
	authed.POST("/api/payments", s.handleCreatePayment)
	authed.GET("/api/transactions/:code", s.handleGetTransaction)
	authed.GET("/ws/"+hub.ChannelName, s.handleHubSocket)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, database.Health(c.Request.Context(), s.db))
}

type createPaymentRequest struct {
	BorrowRequestID int64   `json:"borrowRequestId" binding:"required"`
	Amount          float64 `json:"amount" binding:"required,gt=0"`
	Description     string  `json:"description"`
}

type paymentData struct {
	OrderCode       int64      `json:"orderCode"`
	TransactionCode string     `json:"transactionCode"`
	QRCode          string     `json:"qrCode"`
	Description     string     `json:"description"`
	ExpiredAt       *time.Time `json:"expiredAt,omitempty"`
}

func (s *Server) handleCreatePayment(c *gin.Context) {
	cred, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"isSuccess": false})
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"isSuccess": false, "error": err.Error()})
		return
	}

	result, err := s.payments.CreateAttempt(c.Request.Context(), cred.UserID, req.BorrowRequestID, req.Amount, req.Description)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if result.Session == nil {
		c.JSON(http.StatusOK, gin.H{
			"isSuccess": true,
			"data":      gin.H{"message": result.Message},
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"isSuccess": true,
		"data": gin.H{"paymentData": paymentData{
			OrderCode:       result.Session.OrderCode,
			TransactionCode: result.Transaction.TransactionCode,
			QRCode:          result.Session.QRCode,
			Description:     result.Session.Description,
			ExpiredAt:       result.Session.ExpiredAt,
		}},
	})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	record, err := s.payments.GetTransaction(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactionCode":   record.TransactionCode,
		"transactionStatus": record.Status,
		"description":       record.Description,
		"qrCode":            record.QRCode,
		"expiredAt":         record.ExpiredAt,
	})
}

type webhookRequest struct {
	TransactionCode string                   `json:"transactionCode" binding:"required"`
	Status          domain.TransactionStatus `json:"status" binding:"required"`
}

func (s *Server) handleWebhook(c *gin.Context) {
	if s.gatewayAPIKey != "" && c.GetHeader("x-api-key") != s.gatewayAPIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad api key"})
		return
	}

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	if err := s.payments.ApplyStatus(c.Request.Context(), req.TransactionCode, req.Status); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleHubSocket(c *gin.Context) {
	cred, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credential"})
		return
	}
	if err := s.hub.Serve(c.Writer, c.Request, cred.UserID); err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptInFlight):
		c.JSON(http.StatusConflict, gin.H{"isSuccess": false, "error": err.Error()})
	case errors.Is(err, service.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"isSuccess": false, "error": err.Error()})
	case errors.Is(err, payment.ErrMalformedResponse):
		c.JSON(http.StatusBadGateway, gin.H{"isSuccess": false, "error": err.Error()})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"isSuccess": false, "error": "internal error"})
	}
}
