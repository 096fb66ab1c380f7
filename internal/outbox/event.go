package outbox

// Event is the domain event envelope written to the outbox table in the same
// transaction as the appointment mutation it describes. The Kafka topic name
// equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the booking core.
const (
	EventAppointmentBooked    = "salon.appointment.booked.v1"
	EventAppointmentCompleted = "salon.appointment.completed.v1"
	EventAppointmentCancelled = "salon.appointment.cancelled.v1"
	EventAppointmentStatus    = "salon.appointment.status_changed.v1"
	EventPaymentReconciled    = "salon.payment.reconciled.v1"
)
