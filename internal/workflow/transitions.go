// Package workflow defines the authoritative article state machine: the
// single edge table consulted by the service-layer guard, plus the pure
// predicates built on top of it. It holds no state and performs no I/O.
package workflow

import "github.com/ujmp/editorial-api/internal/models"

// transitions maps current status -> target status -> roles allowed to
// trigger the edge. RoleSystem marks automatic transitions performed by
// internal invocation paths only.
var transitions = map[models.ArticleStatus]map[models.ArticleStatus][]models.UserRole{
	models.StatusDraft: {
		models.StatusSubmitted: {models.RoleAuthor},
	},
	models.StatusSubmitted: {
		models.StatusDeskCheck: {models.RoleSystem},
		models.StatusRejected:  {models.RoleAdmin},
	},
	models.StatusDeskCheck: {
		models.StatusUnderReview: {models.RoleAdmin},
		models.StatusRejected:    {models.RoleAdmin},
	},
	models.StatusUnderReview: {
		models.StatusRevisionRequired: {models.RoleReviewer, models.RoleAdmin},
		models.StatusAccepted:         {models.RoleAdmin},
		models.StatusRejected:         {models.RoleAdmin},
	},
	models.StatusRevisionRequired: {
		models.StatusUnderReview: {models.RoleSystem},
	},
	models.StatusRevisedSubmitted: {
		models.StatusUnderReview: {models.RoleReviewer, models.RoleAdmin},
		models.StatusRejected:    {models.RoleAdmin},
	},
	models.StatusAccepted: {
		// The payment gate for PRODUCTION is enforced in the workflow
		// service, not here; the table only answers status legality.
		models.StatusProduction: {models.RoleAdmin},
		models.StatusRejected:   {models.RoleAdmin},
	},
	models.StatusProduction: {
		models.StatusScheduled: {models.RoleAdmin},
		models.StatusPublished: {models.RoleAdmin},
	},
	models.StatusScheduled: {
		models.StatusPublished: {models.RoleAdmin, models.RoleSystem},
	},
	models.StatusPublished: {
		models.StatusCertificateIssued: {models.RoleSystem},
	},
	models.StatusRejected: {
		models.StatusArchived: {models.RoleAdmin},
	},
	// CERTIFICATE_ISSUED and ARCHIVED are terminal.
	// REVIEWERS_INVITED and EDITOR_DECISION are declared statuses with no
	// edges yet; they stay unreachable until the table grows them.
	models.StatusCertificateIssued: {},
	models.StatusArchived:          {},
}

// CanTransition reports whether the edge from -> to exists and the role may
// trigger it. Edges tagged SYSTEM are always permitted: they model automatic
// transitions fired by internal code, regardless of the caller's own role.
func CanTransition(from, to models.ArticleStatus, role models.UserRole) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	roles, ok := targets[to]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == models.RoleSystem || r == role {
			return true
		}
	}
	return false
}

// AllowedTransitions returns every status reachable from the current one by
// the given role, including SYSTEM edges.
func AllowedTransitions(from models.ArticleStatus, role models.UserRole) []models.ArticleStatus {
	targets, ok := transitions[from]
	if !ok {
		return nil
	}
	allowed := make([]models.ArticleStatus, 0, len(targets))
	for to := range targets {
		if CanTransition(from, to, role) {
			allowed = append(allowed, to)
		}
	}
	return allowed
}

// IsTerminal reports whether the status has no outgoing edges.
func IsTerminal(status models.ArticleStatus) bool {
	return status == models.StatusCertificateIssued || status == models.StatusArchived
}

// CanPublish is the payment gate predicate: the article must be ACCEPTED or
// in PRODUCTION, and its payment status settled.
func CanPublish(status models.ArticleStatus, payment models.PaymentStatus) bool {
	if status != models.StatusAccepted && status != models.StatusProduction {
		return false
	}
	return PaymentSettled(payment)
}

// PaymentSettled reports whether the payment gate is satisfied.
func PaymentSettled(payment models.PaymentStatus) bool {
	return payment == models.PaymentPaid || payment == models.PaymentNotRequired
}

// CanIssueCertificate reports whether a certificate may be created for an
// article in the given status.
func CanIssueCertificate(status models.ArticleStatus) bool {
	return status == models.StatusPublished
}

// Statuses returns every declared status; useful for exhaustive checks.
func Statuses() []models.ArticleStatus {
	return []models.ArticleStatus{
		models.StatusDraft,
		models.StatusSubmitted,
		models.StatusDeskCheck,
		models.StatusReviewersInvited,
		models.StatusUnderReview,
		models.StatusRevisionRequired,
		models.StatusRevisedSubmitted,
		models.StatusEditorDecision,
		models.StatusAccepted,
		models.StatusPaymentPending,
		models.StatusPaid,
		models.StatusProduction,
		models.StatusScheduled,
		models.StatusPublished,
		models.StatusCertificateIssued,
		models.StatusRejected,
		models.StatusArchived,
	}
}
