package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// toStatus переводит ошибку сервисного слоя в gRPC-статус.
// Внутренние ошибки наружу не раскрываются.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var stockErr *domain.StockError
	switch {
	case errors.As(err, &stockErr):
		return stockStatus(stockErr)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrBookNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOrderAlreadyCancelled),
		errors.Is(err, domain.ErrCancellationWindowExpired),
		errors.Is(err, domain.ErrInvalidStatusTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrTransactionConflict),
		errors.Is(err, domain.ErrOrderVersionConflict),
		errors.Is(err, domain.ErrIdempotencyInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrUserRequired),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrBookIDRequired),
		errors.Is(err, domain.ErrInvalidTrackingStatus),
		errors.Is(err, domain.ErrInvalidOrderStatus),
		errors.Is(err, domain.ErrDeliveryInfoInvalid),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// stockStatus добавляет к FailedPrecondition книгу, которой не хватило.
func stockStatus(stockErr *domain.StockError) error {
	st := status.New(codes.FailedPrecondition, stockErr.Error())
	detailed, err := st.WithDetails(&errdetails.PreconditionFailure{
		Violations: []*errdetails.PreconditionFailure_Violation{{
			Type:        "STOCK",
			Subject:     "books/" + stockErr.BookID,
			Description: stockErr.Error(),
		}},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

func invalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
