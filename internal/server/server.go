package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fachebot/evm-genie-bot/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server 存活探针和指标端口
type Server struct {
	httpServer *http.Server
	stopChan   chan struct{}
}

func NewHandler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func NewServer(port int) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() {
	if s.stopChan != nil {
		return
	}

	s.stopChan = make(chan struct{})
	logger.Infof("[Server] 开始监听, addr: %s", s.httpServer.Addr)

	go func() {
		defer close(s.stopChan)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[Server] 监听失败, addr: %s, %v", s.httpServer.Addr, err)
		}
	}()
}

func (s *Server) Stop() {
	if s.stopChan == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("[Server] 停止服务失败, %v", err)
	}

	<-s.stopChan
	s.stopChan = nil
	logger.Infof("[Server] 服务已经停止")
}
