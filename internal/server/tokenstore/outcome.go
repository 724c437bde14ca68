package tokenstore

import "github.com/dmitrijs2005/skyhaul/internal/server/models"

// OutcomeKind classifies the result of ConsumeToken.
type OutcomeKind int

const (
	OutcomeNotFound OutcomeKind = iota
	OutcomeAlreadyConsumed
	OutcomeAlreadyRevoked
	OutcomeAlreadyTurnedIn
	OutcomeExpired
	OutcomeSucceeded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeAlreadyConsumed:
		return "already_consumed"
	case OutcomeAlreadyRevoked:
		return "already_revoked"
	case OutcomeAlreadyTurnedIn:
		return "already_turned_in"
	case OutcomeExpired:
		return "expired"
	case OutcomeSucceeded:
		return "succeeded"
	}
	return "unknown"
}

// ConsumeOutcome is the result of ConsumeToken. FamilyID is set for every
// kind except NotFound. Token is the row as it was before consumption and is
// set only for OutcomeSucceeded.
type ConsumeOutcome struct {
	Kind     OutcomeKind
	FamilyID string
	Token    *models.RefreshToken
}

// IsReuse reports whether the outcome means a secret that already left the
// active state was presented again.
func (o ConsumeOutcome) IsReuse() bool {
	switch o.Kind {
	case OutcomeAlreadyConsumed, OutcomeAlreadyRevoked, OutcomeAlreadyTurnedIn:
		return true
	}
	return false
}

// terminalOutcome maps a non-active row to its outcome.
func terminalOutcome(t *models.RefreshToken) (ConsumeOutcome, bool) {
	switch t.Status {
	case models.TokenStatusConsumed:
		return ConsumeOutcome{Kind: OutcomeAlreadyConsumed, FamilyID: t.FamilyID}, true
	case models.TokenStatusRevoked:
		return ConsumeOutcome{Kind: OutcomeAlreadyRevoked, FamilyID: t.FamilyID}, true
	case models.TokenStatusTurnedIn:
		return ConsumeOutcome{Kind: OutcomeAlreadyTurnedIn, FamilyID: t.FamilyID}, true
	}
	return ConsumeOutcome{}, false
}
