// Package httpapi exposes the engine over HTTP: the storefront JSON API and
// the SSE live views.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"burger-house/internal/delivery"
	"burger-house/internal/fanout"
	"burger-house/internal/ledger"
	"burger-house/internal/logging"
	"burger-house/internal/orders"
	"burger-house/internal/storage"
)

type Server struct {
	engine  *gin.Engine
	builder *orders.Builder
	fsm     *orders.StateMachine
	ledger  *ledger.Ledger
	tracker *delivery.Tracker
	skus    storage.SKURepo
	subs    storage.SubscriptionRepo

	kitchenStream  *fanout.Streamer
	deliveryStream *fanout.Streamer

	log *logging.Logger
}

func NewServer(
	builder *orders.Builder,
	fsm *orders.StateMachine,
	lg *ledger.Ledger,
	tracker *delivery.Tracker,
	skus storage.SKURepo,
	subs storage.SubscriptionRepo,
	kitchenStream, deliveryStream *fanout.Streamer,
) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Server{
		engine:         r,
		builder:        builder,
		fsm:            fsm,
		ledger:         lg,
		tracker:        tracker,
		skus:           skus,
		subs:           subs,
		kitchenStream:  kitchenStream,
		deliveryStream: deliveryStream,
		log:            logging.New("http-api"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")
	{
		ord := v1.Group("/orders")
		ord.POST("", s.createOrder)
		ord.GET("", s.listOrders)
		ord.GET(":id", s.getOrder)
		ord.POST(":id/status", s.setOrderStatus)
		ord.POST(":id/cancel", s.cancelOrder)
		ord.POST(":id/dispatch", s.dispatchDelivery)

		del := v1.Group("/deliveries")
		del.GET(":token", s.trackDelivery)
		del.POST(":token/location", s.reportLocation)
		del.POST(":token/status", s.setDeliveryStatus)

		stock := v1.Group("/stock")
		stock.GET("", s.listStock)
		stock.POST(":id/deactivate", s.deactivateSKU)
		stock.POST(":id/receive", s.receiveStock)
		stock.POST(":id/adjust", s.adjustStock)
		stock.POST(":id/loss", s.recordLoss)
		stock.GET(":id/movements", s.listMovements)

		v1.POST("/webhooks/payment", s.paymentWebhook)
		v1.POST("/push/subscriptions", s.subscribePush)

		stream := v1.Group("/stream")
		stream.GET("/kitchen", s.streamSSE(s.kitchenStream))
		stream.GET("/deliveries", s.streamSSE(s.deliveryStream))
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: s.engine}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("listening", map[string]any{"port": port})

	select {
	case <-ctx.Done():
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx2)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
