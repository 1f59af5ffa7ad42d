package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nilomr/majorvocal/internal/logger"
	metricspkg "github.com/nilomr/majorvocal/internal/observability/metrics"
)

// Endpoint serves /metrics while a pipeline run is in progress.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewEndpoint creates an Endpoint listening on listenAddress.
func NewEndpoint(listenAddress string, metrics *Metrics, log logger.Logger) *Endpoint {
	if log == nil {
		log = logger.Global().Module("metrics")
	}
	return &Endpoint{
		listenAddress: listenAddress,
		metrics:       metrics,
		log:           log,
	}
}

// Start binds the listener and serves in the background until ctx is done
// or Shutdown is called. It returns the bound address.
func (e *Endpoint) Start(ctx context.Context) (string, error) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	listener, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return "", err
	}

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, e.cancel = context.WithCancel(ctx)
	addr := listener.Addr().String()
	e.wg.Go(func() {
		e.log.Info("metrics endpoint starting", logger.String("address", addr))
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics HTTP server error", logger.Error(err))
		}
	})

	e.wg.Go(func() {
		<-ctx.Done()
		e.shutdown()
	})

	return addr, nil
}

// Shutdown stops the server and waits for its goroutines.
func (e *Endpoint) Shutdown() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.wg.Wait()
}

func (e *Endpoint) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("metrics server shutdown error", logger.Error(err))
	}
}
