package httpserver

import (
	"context"
	"fmt"
	"time"
)

// ShutdownTimeout is the default time allowed for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.inner.Shutdown(ctx); err != nil {
		_ = s.inner.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
