package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tomsync/shopee-collector/internal/application/ingest"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
)

// WorkerStatus exposes worker liveness to the ops API
type WorkerStatus interface {
	Status() string
	ActiveJobs() int64
}

// Server is the operations HTTP API of the collector daemon
type Server struct {
	service  *ingest.Service
	worker   WorkerStatus
	registry *prometheus.Registry
	log      *logrus.Entry
	srv      *http.Server
	started  time.Time
}

// NewServer builds the gin router and the underlying HTTP server
func NewServer(addr string, service *ingest.Service, worker WorkerStatus, registry *prometheus.Registry, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		service:  service,
		worker:   worker,
		registry: registry,
		log:      log.WithField("component", "http-api"),
		started:  time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/queue/status", s.queueStatus)
	router.GET("/system/info", s.systemInfo)
	router.POST("/order/collect/:shopId", s.collectOrders)
	router.POST("/shop/:shopId/authorize", s.authorizeShop)
	router.GET("/order/:orderId", s.getOrder)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	s.srv = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("HTTP API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests up to the context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	status := "idle"
	var active int64
	if s.worker != nil {
		status = s.worker.Status()
		active = s.worker.ActiveJobs()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"worker":      status,
		"active_jobs": active,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) queueStatus(c *gin.Context) {
	depths, err := s.service.QueueDepths(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": depths})
}

func (s *Server) systemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pid":        os.Getpid(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"num_cpu":    runtime.NumCPU(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) collectOrders(c *gin.Context) {
	shopRef := c.Param("shopId")

	jobID, err := s.service.EnqueueCollect(c.Request.Context(), shopRef, true)
	if err != nil {
		var ce *shared.ConfigError
		if errors.As(err, &ce) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"shop_id": shopRef,
	})
}

func (s *Server) authorizeShop(c *gin.Context) {
	shopRef := c.Param("shopId")
	code := c.Query("code")

	if err := s.service.AuthorizeShop(c.Request.Context(), shopRef, code); err != nil {
		var ce *shared.ConfigError
		if errors.As(err, &ce) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"shop_id": shopRef, "authorized": true})
}

func (s *Server) getOrder(c *gin.Context) {
	ref := c.Param("orderId")

	o, err := s.service.GetOrder(c.Request.Context(), ref)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if o == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":               o.ID,
		"platform":         o.Platform,
		"order_num":        o.OrderNum,
		"status":           o.Status,
		"action_status":    o.ActionStatus,
		"country":          o.Country,
		"currency":         o.Currency,
		"total_amount":     o.TotalAmount,
		"shop_id":          o.ShopID,
		"company_id":       o.CompanyID,
		"fulfillment_flag": o.FulfillmentFlag,
		"order_time":       o.OrderTime,
		"pay_time":         o.PayTime,
		"ship_by_date":     o.ShipByDate,
		"days_to_ship":     o.DaysToShip,
		"created_at":       o.CreatedAt,
		"updated_at":       o.UpdatedAt,
	})
}
