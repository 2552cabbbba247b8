package outbox

const (
	EventUserRegistered = "auth.user.registered.v1"
	EventAudit          = "auth.audit.v1"
)

// Event is written to outbox_events in the same transaction as the change it describes.
// The publisher relays it to the Kafka topic named EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
