package models

// Party identifies one of the two actors sharing the board
type Party string

const (
	PartyHuman Party = "human"
	PartyAgent Party = "agent"
)

// Valid reports whether p is a known party
func (p Party) Valid() bool {
	return p == PartyHuman || p == PartyAgent
}

// Other returns the counterpart of p
func (p Party) Other() Party {
	if p == PartyAgent {
		return PartyHuman
	}
	return PartyAgent
}

// LastViewedColumn returns the tasks column holding p's last-viewed marker
func (p Party) LastViewedColumn() string {
	if p == PartyAgent {
		return "last_viewed_bot"
	}
	return "last_viewed_user"
}
