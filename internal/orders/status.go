package orders

// Status mirrors the backend's order lifecycle. The client never
// transitions an order itself; it holds the table only to decide which
// actions to offer, and always reflects the server's answer.
type Status string

const (
	StatusPlaced     Status = "PLACED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var validTransitions = map[Status][]Status{
	StatusPlaced:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {}, // terminal
	StatusCancelled:  {}, // terminal
}

// CanTransition reports whether from -> to is a transition the backend
// could accept.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether a cancel request is worth sending at all.
func Cancellable(s Status) bool {
	return CanTransition(s, StatusCancelled)
}

// SellerActions lists the transitions a seller dashboard should offer
// for an order in the given status.
func SellerActions(s Status) []Status {
	out := make([]Status, 0, 2)
	out = append(out, validTransitions[s]...)
	return out
}
