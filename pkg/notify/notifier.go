package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/status"
	"go.uber.org/zap"
)

// Intent asks the guest messaging channel to tell a guest about their order.
type Intent struct {
	Status      status.Status `json:"status"`
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	RoomNumber  string        `json:"room_number"`
	GuestPhone  string        `json:"guest_phone"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// Template names the guest message the transport should render.
func (i Intent) Template() string {
	return "order_" + string(i.Status)
}

func (i Intent) Encode() ([]byte, error) {
	return json.Marshal(struct {
		Template string `json:"template"`
		Intent
	}{Template: i.Template(), Intent: i})
}

// IntentFor builds the intent for an order that has just moved to to.
// Only ready and delivered are announced, and only to guests with a phone
// and a room on file.
func IntentFor(order *models.Order, to status.Status) (Intent, bool) {
	if to != status.Ready && to != status.Delivered {
		return Intent{}, false
	}
	if !order.HasGuestContact() {
		return Intent{}, false
	}
	return Intent{
		Status:      to,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		RoomNumber:  order.RoomNumber,
		GuestPhone:  order.GuestPhone,
		OccurredAt:  time.Now().UTC(),
	}, true
}

// Notifier delivers one intent to the guest messaging transport.
type Notifier interface {
	Notify(ctx context.Context, intent Intent) error
}

// LogNotifier only logs intents. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) Notify(_ context.Context, intent Intent) error {
	n.logger.Info("Guest notification",
		zap.String("template", intent.Template()),
		zap.String("order_number", intent.OrderNumber),
		zap.String("room", intent.RoomNumber))
	return nil
}
