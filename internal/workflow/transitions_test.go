package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujmp/editorial-api/internal/models"
)

type edge struct {
	from models.ArticleStatus
	to   models.ArticleStatus
}

// edgeTable mirrors the configured transitions for exhaustive sweeps.
var edgeTable = map[edge][]models.UserRole{
	{models.StatusDraft, models.StatusSubmitted}:                  {models.RoleAuthor},
	{models.StatusSubmitted, models.StatusDeskCheck}:              {models.RoleSystem},
	{models.StatusSubmitted, models.StatusRejected}:               {models.RoleAdmin},
	{models.StatusDeskCheck, models.StatusUnderReview}:            {models.RoleAdmin},
	{models.StatusDeskCheck, models.StatusRejected}:               {models.RoleAdmin},
	{models.StatusUnderReview, models.StatusRevisionRequired}:     {models.RoleReviewer, models.RoleAdmin},
	{models.StatusUnderReview, models.StatusAccepted}:             {models.RoleAdmin},
	{models.StatusUnderReview, models.StatusRejected}:             {models.RoleAdmin},
	{models.StatusRevisionRequired, models.StatusUnderReview}:     {models.RoleSystem},
	{models.StatusRevisedSubmitted, models.StatusUnderReview}:     {models.RoleReviewer, models.RoleAdmin},
	{models.StatusRevisedSubmitted, models.StatusRejected}:        {models.RoleAdmin},
	{models.StatusAccepted, models.StatusProduction}:              {models.RoleAdmin},
	{models.StatusAccepted, models.StatusRejected}:                {models.RoleAdmin},
	{models.StatusProduction, models.StatusScheduled}:             {models.RoleAdmin},
	{models.StatusProduction, models.StatusPublished}:             {models.RoleAdmin},
	{models.StatusScheduled, models.StatusPublished}:              {models.RoleAdmin, models.RoleSystem},
	{models.StatusPublished, models.StatusCertificateIssued}:      {models.RoleSystem},
	{models.StatusRejected, models.StatusArchived}:                {models.RoleAdmin},
}

func TestCanTransitionMatchesEdgeTable(t *testing.T) {
	roles := []models.UserRole{models.RoleAuthor, models.RoleReviewer, models.RoleAdmin}

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			allowed, configured := edgeTable[edge{from, to}]
			for _, role := range roles {
				want := false
				if configured {
					for _, r := range allowed {
						if r == models.RoleSystem || r == role {
							want = true
							break
						}
					}
				}
				got := CanTransition(from, to, role)
				assert.Equalf(t, want, got, "%s -> %s as %s", from, to, role)
			}
		}
	}
}

func TestSystemEdgesIgnoreCallerRole(t *testing.T) {
	for e, roles := range edgeTable {
		system := false
		for _, r := range roles {
			if r == models.RoleSystem {
				system = true
			}
		}
		if !system {
			continue
		}
		for _, role := range []models.UserRole{models.RoleAuthor, models.RoleReviewer, models.RoleAdmin} {
			assert.Truef(t, CanTransition(e.from, e.to, role), "%s -> %s should allow %s via SYSTEM tag", e.from, e.to, role)
		}
	}
}

func TestUnknownStatusesHaveNoTransitions(t *testing.T) {
	// Declared but not yet wired into the table.
	for _, status := range []models.ArticleStatus{
		models.StatusReviewersInvited,
		models.StatusEditorDecision,
		models.StatusPaymentPending,
		models.StatusPaid,
	} {
		for _, to := range Statuses() {
			assert.Falsef(t, CanTransition(status, to, models.RoleAdmin), "%s must be unreachable/sourceless", status)
		}
		for _, from := range Statuses() {
			assert.Falsef(t, CanTransition(from, status, models.RoleAdmin), "no edge may target %s", status)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range Statuses() {
		want := status == models.StatusCertificateIssued || status == models.StatusArchived
		assert.Equal(t, want, IsTerminal(status), string(status))
	}
}

func TestAllowedTransitions(t *testing.T) {
	got := AllowedTransitions(models.StatusUnderReview, models.RoleReviewer)
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusRevisionRequired, got[0])

	got = AllowedTransitions(models.StatusUnderReview, models.RoleAdmin)
	assert.Len(t, got, 3)

	// SYSTEM edges appear for any role.
	got = AllowedTransitions(models.StatusSubmitted, models.RoleAuthor)
	assert.Contains(t, got, models.StatusDeskCheck)
	assert.NotContains(t, got, models.StatusRejected)

	assert.Empty(t, AllowedTransitions(models.StatusArchived, models.RoleAdmin))
}

func TestCanPublish(t *testing.T) {
	cases := []struct {
		status  models.ArticleStatus
		payment models.PaymentStatus
		want    bool
	}{
		{models.StatusAccepted, models.PaymentPaid, true},
		{models.StatusAccepted, models.PaymentNotRequired, true},
		{models.StatusAccepted, models.PaymentPending, false},
		{models.StatusAccepted, models.PaymentNone, false},
		{models.StatusProduction, models.PaymentPaid, true},
		{models.StatusProduction, models.PaymentNotRequired, true},
		{models.StatusProduction, models.PaymentPending, false},
		{models.StatusUnderReview, models.PaymentPaid, false},
		{models.StatusPublished, models.PaymentPaid, false},
		{models.StatusDraft, models.PaymentNotRequired, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, CanPublish(tc.status, tc.payment), "%s/%s", tc.status, tc.payment)
	}
}

func TestCanIssueCertificate(t *testing.T) {
	for _, status := range Statuses() {
		assert.Equal(t, status == models.StatusPublished, CanIssueCertificate(status), string(status))
	}
}
