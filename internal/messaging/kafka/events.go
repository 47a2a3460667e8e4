package kafka

// EventType определяет тип доменного события магазина.
type EventType string

const (
	// События заказов.
	EventTypeOrderCreated        EventType = "order.created"
	EventTypeOrderStatusChanged  EventType = "order.status_changed"
	EventTypeOrderCancelled      EventType = "order.cancelled"
	EventTypeOrderPaymentUpdated EventType = "order.payment_updated"

	// События ежедневных предложений.
	EventTypeOfferSaleRecorded EventType = "offer.sale_recorded"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "bookstore.order.events"
	TopicOfferEvents     = "bookstore.offer.events"
	TopicDeadLetterQueue = "bookstore.dlq" // Dead Letter Queue для failed messages
)
