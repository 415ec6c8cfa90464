package lifecycle

// Stage is the classified meaning of a gateway webhook.
type Stage string

const (
	StageCreated   Stage = "created"
	StageConfirmed Stage = "confirmed"
	StageUnhandled Stage = "unhandled"
)

// Classify maps a webhook's (event type, status) pair to a lifecycle stage.
// Anything outside the two known combinations is Unhandled: no sinks are
// dispatched, but the webhook is still acknowledged so the gateway does not
// retry it.
func Classify(eventType, status string) Stage {
	switch {
	case eventType == "transaction.created" && status == "pending":
		return StageCreated
	case eventType == "transaction.processed" && status == "paid":
		return StageConfirmed
	default:
		return StageUnhandled
	}
}
