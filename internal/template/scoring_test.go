package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smart-mail-relay-go/internal/model"
)

func TestCategoryScores_DomainHintMatchesSubdomain(t *testing.T) {
	email := model.CanonicalMessage{From: "receipts@billing.stripe.com", Subject: "your statement"}
	scores := categoryScores(email)
	assert.Greater(t, scores[model.CategoryInvoice], 0.0)
}

func TestCategoryScores_SubjectPatternMatchesInvoice(t *testing.T) {
	email := model.CanonicalMessage{From: "a@example.com", Subject: "Invoice #4821 is ready"}
	scores := categoryScores(email)
	assert.Greater(t, scores[model.CategoryInvoice], 0.0)
}

func TestCategoryScores_KeywordCountsAccumulate(t *testing.T) {
	one := model.CanonicalMessage{From: "a@example.com", Subject: "sale", BodyText: "one sale today"}
	two := model.CanonicalMessage{From: "a@example.com", Subject: "sale sale", BodyText: "sale sale sale"}
	scoresOne := categoryScores(one)
	scoresTwo := categoryScores(two)
	assert.Greater(t, scoresTwo[model.CategoryMarketing], scoresOne[model.CategoryMarketing])
}

func TestSenderDomain_StripsAngleBracketAndLowercases(t *testing.T) {
	assert.Equal(t, "example.com", senderDomain("Jane <Jane@Example.COM>"))
}

func TestSenderDomain_NoAtSignReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", senderDomain("not-an-address"))
}

func TestScoreTemplate_OnlyCountsCoveredCategories(t *testing.T) {
	email := model.CanonicalMessage{From: "a@example.com", Subject: "Invoice #12", BodyText: ""}
	scores := categoryScores(email)

	covered := model.PromptTemplate{Name: "billing", Categories: []string{string(model.CategoryInvoice)}}
	uncovered := model.PromptTemplate{Name: "social", Categories: []string{string(model.CategoryNewsletter)}}

	assert.Greater(t, scoreTemplate(covered, email, scores), scoreTemplate(uncovered, email, scores))
}

func TestNameOverlapScore_RewardsSharedLongWords(t *testing.T) {
	overlap := nameOverlapScore("invoice template", "Your invoice is ready")
	none := nameOverlapScore("newsletter digest", "Your invoice is ready")
	assert.Greater(t, overlap, none)
}

func TestNameOverlapScore_IgnoresShortWords(t *testing.T) {
	assert.Equal(t, 0.0, nameOverlapScore("the app", "the big app"))
}
