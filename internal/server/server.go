package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/autotrade/internal/config"
	"github.com/smallbiznis/autotrade/internal/customer"
	customerdomain "github.com/smallbiznis/autotrade/internal/customer/domain"
	"github.com/smallbiznis/autotrade/internal/invoice"
	invoicedomain "github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/observability"
	obscontext "github.com/smallbiznis/autotrade/internal/observability/context"
	obsmiddleware "github.com/smallbiznis/autotrade/internal/observability/logger"
	obstracing "github.com/smallbiznis/autotrade/internal/observability/tracing"
	"github.com/smallbiznis/autotrade/internal/payment"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
	"github.com/smallbiznis/autotrade/internal/vehicle"
	vehicledomain "github.com/smallbiznis/autotrade/internal/vehicle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	customer.Module,
	vehicle.Module,
	invoice.Module,
	payment.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		UserHeader:      HeaderUserID,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	log         *zap.Logger
	customerSvc customerdomain.Service
	vehicleSvc  vehicledomain.Service
	invoiceSvc  invoicedomain.Service
	paymentSvc  paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Log         *zap.Logger
	CustomerSvc customerdomain.Service
	VehicleSvc  vehicledomain.Service
	InvoiceSvc  invoicedomain.Service
	PaymentSvc  paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		log:         p.Log.Named("http.server"),
		customerSvc: p.CustomerSvc,
		vehicleSvc:  p.VehicleSvc,
		invoiceSvc:  p.InvoiceSvc,
		paymentSvc:  p.PaymentSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.PATCH("/customers/:id", s.UpdateCustomer)
	api.DELETE("/customers/:id", s.DeleteCustomer)

	// -------- Vehicles --------
	api.GET("/vehicles", s.ListVehicles)
	api.POST("/vehicles", s.CreateVehicle)
	api.GET("/vehicles/:id", s.GetVehicleByID)
	api.PATCH("/vehicles/:id", s.UpdateVehicle)
	api.DELETE("/vehicles/:id", s.DeleteVehicle)

	// -------- Invoices --------
	invoices := api.Group("/invoices", tagResource(obscontext.WithInvoiceID))
	invoices.GET("", s.ListInvoices)
	invoices.POST("", s.CreateInvoice)
	invoices.GET("/statistics", s.GetInvoiceStatistics)
	invoices.GET("/overdue", s.ListOverdueInvoices)
	invoices.GET("/next-number", s.GetNextInvoiceNumber)
	invoices.POST("/from-vehicle-sale", s.CreateInvoiceFromVehicleSale)
	invoices.GET("/:id", s.GetInvoiceByID)
	invoices.PATCH("/:id", s.UpdateInvoice)
	invoices.DELETE("/:id", s.DeleteInvoice)
	invoices.POST("/:id/send", s.SendInvoice)
	invoices.POST("/:id/cancel", s.CancelInvoice)
	invoices.GET("/:id/payments/summary", s.GetInvoicePaymentSummary)
	invoices.POST("/:id/payments/quick", s.CreateQuickPayment)
	invoices.POST("/:id/payments/full", s.ProcessFullPayment)

	// -------- Payments --------
	payments := api.Group("/payments", tagResource(obscontext.WithPaymentID))
	payments.GET("", s.ListPayments)
	payments.POST("", s.CreatePayment)
	payments.GET("/statistics", s.GetPaymentStatistics)
	payments.GET("/:id", s.GetPaymentByID)
	payments.PATCH("/:id", s.UpdatePayment)
	payments.DELETE("/:id", s.DeletePayment)
	payments.POST("/:id/refund", s.CreateRefund)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrRouteNotFound)
	})
}
