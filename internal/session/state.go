package session

// Kind tags which variant a State holds.
type Kind int

const (
	None Kind = iota
	Provisional
	Confirmed
)

func (k Kind) String() string {
	switch k {
	case Provisional:
		return "provisional"
	case Confirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// State is the resolver's snapshot. Exactly one of Claims (Provisional)
// or Identity (Confirmed) is meaningful, selected by Kind.
type State struct {
	Kind     Kind
	Claims   Claims
	Identity Identity
}

// Role returns the role to display: the confirmed role when there is one,
// otherwise the unverified claim.
func (s State) Role() string {
	switch s.Kind {
	case Confirmed:
		return s.Identity.Role
	case Provisional:
		return s.Claims.Role
	default:
		return ""
	}
}

// Subject returns the email to display.
func (s State) Subject() string {
	switch s.Kind {
	case Confirmed:
		return s.Identity.Email
	case Provisional:
		return s.Claims.Subject
	default:
		return ""
	}
}
