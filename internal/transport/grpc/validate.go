package grpcapi

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	bookstorev1 "github.com/vladislavdragonenkov/bookstore/api/bookstore/v1"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const (
	minAddressLength = 10
	maxAddressLength = 500
	maxOrderLines    = 100
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

func validatePlaceOrder(req *bookstorev1.PlaceOrderRequest) error {
	if req == nil {
		return invalidArgument("request is required")
	}
	if len(req.Lines) == 0 {
		return invalidArgument("order must contain at least one line")
	}
	if len(req.Lines) > maxOrderLines {
		return invalidArgument(fmt.Sprintf("order must contain at most %d lines", maxOrderLines))
	}
	for i, line := range req.Lines {
		if strings.TrimSpace(line.BookID) == "" {
			return invalidArgument(fmt.Sprintf("lines[%d].book_id is required", i))
		}
		if line.Quantity <= 0 {
			return invalidArgument(fmt.Sprintf("lines[%d].quantity must be greater than zero", i))
		}
	}
	return toStatus(validateDelivery(req.Delivery))
}

// validateDelivery возвращает ошибку, совместимую с domain.ErrDeliveryInfoInvalid.
func validateDelivery(d bookstorev1.DeliveryInfo) error {
	if !phonePattern.MatchString(strings.TrimSpace(d.Phone)) {
		return fmt.Errorf("%w: delivery.phone must contain 9 to 15 digits", domain.ErrDeliveryInfoInvalid)
	}
	if alt := strings.TrimSpace(d.AlternatePhone); alt != "" && !phonePattern.MatchString(alt) {
		return fmt.Errorf("%w: delivery.alternate_phone must contain 9 to 15 digits", domain.ErrDeliveryInfoInvalid)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(d.Address))
	if n < minAddressLength || n > maxAddressLength {
		return fmt.Errorf("%w: delivery.address must be %d to %d characters", domain.ErrDeliveryInfoInvalid, minAddressLength, maxAddressLength)
	}
	return nil
}

func requireOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return invalidArgument("order_id is required")
	}
	return nil
}
