package domain

import "time"

// Типы событий в истории заказа.
const (
	TimelineOrderPlaced     = "OrderPlaced"
	TimelineOrderCancelled  = "OrderCancelled"
	TimelineTrackingChanged = "TrackingStatusChanged"
	TimelineEmailSent       = "NotificationSent"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
