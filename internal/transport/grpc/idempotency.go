package grpcapi

import (
	"context"
	"encoding/json"

	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
)

const replayFailedMessage = "previous request with the same idempotency key failed"

// withIdempotency выполняет handler не более одного раза на ключ.
// Ключ привязан к пользователю: одинаковые ключи разных клиентов не пересекаются.
// Повтор с тем же телом получает сохранённый ответ или сохранённую ошибку.
func withIdempotency[T any](
	ctx context.Context,
	s *Server,
	method string,
	userID string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	if s.guard == nil {
		return handler(ctx)
	}

	key, err := readIdempotencyKey(ctx)
	if err != nil {
		return nil, err
	}
	key = userID + ":" + key

	body, err := json.Marshal(req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to encode request for idempotency hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, replay, err := s.guard.Begin(ctx, method, key, idempotency.RequestHash(method, body))
	if err != nil {
		if domain.IsIdempotencyConflict(err) {
			return nil, toStatus(err)
		}
		s.logger.WithError(err).WithField("method", method).Warn("failed to claim idempotency key")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
	if replay {
		return replayRecord[T](s, record)
	}

	// Результат сохраняем даже если клиент уже отключился.
	persistCtx := context.WithoutCancel(ctx)

	resp, runErr := handler(ctx)
	if runErr != nil {
		s.cacheFailure(persistCtx, key, runErr)
		return nil, runErr
	}

	payload, err := json.Marshal(resp)
	if err == nil {
		err = s.guard.Complete(persistCtx, key, payload, int(codes.OK))
	}
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	return resp, nil
}

func replayRecord[T any](s *Server, record domain.IdempotencyRecord) (*T, error) {
	switch record.Status {
	case domain.IdempotencyStatusDone:
		if len(record.ResponseBody) == 0 {
			return nil, status.Error(codes.Internal, "idempotency cache is empty")
		}
		resp := new(T)
		if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
			return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
		}
		return resp, nil
	case domain.IdempotencyStatusFailed:
		return nil, decodeFailure(record)
	default:
		return nil, status.Error(codes.Internal, "unknown idempotency record status")
	}
}

// cacheFailure сохраняет ошибку как google.rpc.Status, чтобы повтор вернул её вместе с деталями.
func (s *Server) cacheFailure(ctx context.Context, key string, runErr error) {
	st := status.Convert(runErr)
	payload, err := proto.Marshal(st.Proto())
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
	}
	if err := s.guard.Fail(ctx, key, payload, int(st.Code())); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func decodeFailure(record domain.IdempotencyRecord) error {
	if len(record.ResponseBody) > 0 {
		var pb spb.Status
		if err := proto.Unmarshal(record.ResponseBody, &pb); err == nil && codes.Code(pb.GetCode()) != codes.OK {
			return status.FromProto(&pb).Err()
		}
	}
	if code := codes.Code(record.StatusCode); record.StatusCode > 0 && code <= codes.Unauthenticated {
		return status.Error(code, replayFailedMessage)
	}
	return status.Error(codes.Internal, replayFailedMessage)
}
