package deploy

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs every deployment.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Deploy(ctx context.Context, req Request) (*Contract, *Record, error) {
	start := time.Now()
	contract, record, err := m.next.Deploy(ctx, req)

	attrs := []any{
		"target", req.Target,
		"file", req.FileKey,
		"contract", req.Contract,
		"args", len(req.Args),
		"duration", time.Since(start),
	}
	if record != nil {
		attrs = append(attrs, "tx", record.TxHash, "nonce", record.Nonce)
	}
	if contract != nil {
		attrs = append(attrs, "address", contract.Address.Hex())
	}

	if err != nil {
		m.logger.Error("Deploy", append(attrs, "error", err)...)
	} else {
		m.logger.Info("Deploy", attrs...)
	}
	return contract, record, err
}
