// Package http is the HTTP adapter: it translates requests into engine
// calls and engine errors into status codes. No workflow rules live here.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/payment"
	"github.com/cando-yeh/reimbursement-sub001/internal/users"
	"github.com/cando-yeh/reimbursement-sub001/internal/vendors"
	"github.com/cando-yeh/reimbursement-sub001/internal/voucher"
	"github.com/cando-yeh/reimbursement-sub001/internal/workflow"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates a new HTTP server wired to the domain engines
func NewServer(
	config ServerConfig,
	claims *workflow.Engine,
	vendorEngine *vendors.Engine,
	payments *payment.Engine,
	userService *users.Service,
	vouchers *voucher.Generator,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config: config,
		router: gin.New(),
		logger: logger,
	}

	server.router.Use(gin.Recovery())
	server.router.Use(server.loggingMiddleware())
	server.setupRoutes(NewHandlers(claims, vendorEngine, payments, userService, vouchers, logger))

	return server
}

// loggingMiddleware logs every request after it completes
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	{
		api.POST("/claims", h.CreateClaim)
		api.GET("/claims", h.ListClaims)
		api.GET("/claims/:id", h.GetClaim)
		api.PUT("/claims/:id", h.UpdateClaim)
		api.POST("/claims/:id/transition", h.TransitionClaim)
		api.DELETE("/claims/:id", h.DeleteClaim)

		api.GET("/vendors", h.ListVendors)
		api.POST("/vendor-requests", h.CreateVendorRequest)
		api.GET("/vendor-requests", h.ListVendorRequests)
		api.POST("/vendor-requests/:id/resolve", h.ResolveVendorRequest)

		api.POST("/payments/prepare", h.PrepareBatch)
		api.POST("/payments", h.CommitBatch)
		api.GET("/payments", h.ListPayments)
		api.GET("/payments/:id/voucher", h.DownloadVoucher)
		api.DELETE("/payments/:id", h.CancelPayment)

		api.POST("/users", h.CreateUser)
		api.GET("/users", h.ListUsers)
		api.PUT("/users/:id/approver", h.SetApprover)
		api.PUT("/users/:id/permissions", h.UpdatePermissions)
		api.DELETE("/users/:id", h.DeleteUser)
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
