package billing

// GatewayResult is the normalized gateway outcome shared by the verify and
// webhook entry points. Both callers translate their raw inputs into this
// shape before invoking Reconcile, so the engine never knows which path
// triggered it.
type GatewayResult struct {
	GatewayPaymentID string
	InstrumentType   string
	Succeeded        bool
	ErrorCode        string
}

// Outcome describes what a Reconcile call did.
type Outcome int

const (
	// OutcomeApplied means this call performed the state transition.
	OutcomeApplied Outcome = iota
	// OutcomeAlreadyApplied means the payment was already terminal and the
	// call was an idempotent no-op.
	OutcomeAlreadyApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyApplied:
		return "already_applied"
	default:
		return "unknown"
	}
}
