package types

// Decision is the outcome of the suitability check applied to a
// candidate source item before a session is created for it.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Approved marks a candidate as fit for production.
func Approved() Decision {
	return Decision{Approved: true}
}

// Rejected marks a candidate as unfit, with the rationale attached.
func Rejected(reason string) Decision {
	return Decision{Approved: false, Reason: reason}
}
