package template

import (
	"regexp"
	"strings"

	"smart-mail-relay-go/internal/model"
)

// Scoring fallback used when no embedding classifier is ready (spec §4.5).
// Every signal below contributes an additive category score; a template's
// score is the sum of the scores of every category its Categories list
// covers, plus a small template-name/subject word-overlap bonus, and the
// highest total wins. Ties on the final score are broken by catalog
// (insertion) order.

var domainCategoryHints = map[string]model.Category{
	"stripe.com":    model.CategoryInvoice,
	"paypal.com":    model.CategoryReceipt,
	"amazon.com":    model.CategoryReceipt,
	"github.com":    model.CategoryNotification,
	"slack.com":     model.CategoryNotification,
	"linkedin.com":  model.CategoryNotification,
	"mailchimp.com": model.CategoryMarketing,
	"substack.com":  model.CategoryNewsletter,
}

var subjectPatternHints = []struct {
	re       *regexp.Regexp
	category model.Category
}{
	{regexp.MustCompile(`(?i)invoice`), model.CategoryInvoice},
	{regexp.MustCompile(`(?i)receipt|order\s*#`), model.CategoryReceipt},
	{regexp.MustCompile(`(?i)appointment|reminder|meeting|calendar`), model.CategoryAppointment},
	{regexp.MustCompile(`(?i)unsubscribe|newsletter|digest`), model.CategoryNewsletter},
	{regexp.MustCompile(`(?i)support|ticket|case\s*#`), model.CategorySupport},
	{regexp.MustCompile(`(?i)sale|% off|promo code|discount`), model.CategoryMarketing},
}

var contentPatternHints = []struct {
	re       *regexp.Regexp
	category model.Category
}{
	{regexp.MustCompile(`\$\s?\d+(\.\d{2})?`), model.CategoryInvoice},
	{regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s?(am|pm)?\b`), model.CategoryAppointment},
}

type keywordHint struct {
	category model.Category
	weight   float64
}

var keywordWeights = map[string]keywordHint{
	"invoice":  {model.CategoryInvoice, 2},
	"payment":  {model.CategoryInvoice, 1.5},
	"receipt":  {model.CategoryReceipt, 2},
	"order":    {model.CategoryReceipt, 1},
	"meeting":  {model.CategoryAppointment, 1.5},
	"schedule": {model.CategoryAppointment, 1},
	"urgent":   {model.CategoryWork, 1},
	"deadline": {model.CategoryWork, 1.5},
	"offer":    {model.CategoryMarketing, 1},
	"sale":     {model.CategoryMarketing, 1.5},
}

// categoryScores sums every additive signal for one message into a per-category score.
func categoryScores(email model.CanonicalMessage) map[model.Category]float64 {
	scores := make(map[model.Category]float64)

	if domain := senderDomain(email.From); domain != "" {
		for knownDomain, category := range domainCategoryHints {
			if domain == knownDomain || strings.HasSuffix(domain, "."+knownDomain) {
				scores[category] += 3
			}
		}
	}

	for _, hint := range subjectPatternHints {
		if hint.re.MatchString(email.Subject) {
			scores[hint.category] += 2
		}
	}

	body := bodyOrFallback(email)
	for _, hint := range contentPatternHints {
		if hint.re.MatchString(email.Subject) || hint.re.MatchString(body) {
			scores[hint.category] += 1
		}
	}

	haystack := strings.ToLower(email.Subject + " " + body)
	for word, hint := range keywordWeights {
		scores[hint.category] += hint.weight * float64(strings.Count(haystack, word))
	}

	return scores
}

func senderDomain(from string) string {
	at := strings.LastIndex(from, "@")
	if at == -1 || at == len(from)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(from[at+1:], ">"))
}

// scoreTemplate combines the per-category scores covered by tmpl.Categories
// with a small word-overlap bonus between tmpl.Name and the subject line.
func scoreTemplate(tmpl model.PromptTemplate, email model.CanonicalMessage, scores map[model.Category]float64) float64 {
	var total float64
	for _, category := range tmpl.Categories {
		total += scores[model.Category(category)]
	}
	total += nameOverlapScore(tmpl.Name, email.Subject)
	return total
}

func nameOverlapScore(name, subject string) float64 {
	subjectWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(subject)) {
		if len(w) >= 4 {
			subjectWords[w] = struct{}{}
		}
	}
	var score float64
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if len(w) < 4 {
			continue
		}
		if _, ok := subjectWords[w]; ok {
			score += 0.5
		}
	}
	return score
}
