// Package template is the template catalog (spec §4.5): selects a prompt
// template for a message, renders it, and validates the LLM's JSON
// response. Grounded on the teacher's EmailParser (internal/service/
// mail_service.go) for the "load active rows, match against an incoming
// message" shape, generalized from forwarding-rule keyword matching to
// embedding-classifier-or-keyword-scorer template selection.
package template

import (
	"context"
	"fmt"
	"sync"

	"smart-mail-relay-go/internal/embedding"
	"smart-mail-relay-go/internal/model"
)

// Source loads the active template rows; satisfied by repository.Repository.
type Source interface {
	ActiveTemplates(ctx context.Context) ([]model.PromptTemplate, error)
}

// Catalog holds the in-memory snapshot of active templates and the
// classifier used to steer selectTemplate's fast path.
type Catalog struct {
	source        Source
	classifier    embedding.Classifier
	minConfidence float64

	mu        sync.RWMutex
	templates []model.PromptTemplate
}

func NewCatalog(source Source, classifier embedding.Classifier, minConfidence float64) *Catalog {
	if classifier == nil {
		classifier = embedding.NotReady{}
	}
	return &Catalog{source: source, classifier: classifier, minConfidence: minConfidence}
}

// Refresh reloads the active-template snapshot from Source.
func (c *Catalog) Refresh(ctx context.Context) error {
	templates, err := c.source.ActiveTemplates(ctx)
	if err != nil {
		return fmt.Errorf("template: refreshing catalog: %w", err)
	}
	c.mu.Lock()
	c.templates = templates
	c.mu.Unlock()
	return nil
}

// SelectTemplate implements spec §4.5 step 1 (embedding classifier, with
// confidence threshold and focus fallback) and step 2 (keyword/domain/regex
// scorer), in that order of preference.
func (c *Catalog) SelectTemplate(email model.CanonicalMessage, focus model.Focus) (*model.PromptTemplate, error) {
	c.mu.RLock()
	templates := make([]model.PromptTemplate, len(c.templates))
	copy(templates, c.templates)
	c.mu.RUnlock()

	if len(templates) == 0 {
		return nil, fmt.Errorf("template: no active templates available")
	}

	if c.classifier != nil && c.classifier.IsReady() {
		if t := c.selectByClassifier(templates, email, focus); t != nil {
			return t, nil
		}
	}

	return c.selectByScoring(templates, email), nil
}

func (c *Catalog) selectByClassifier(templates []model.PromptTemplate, email model.CanonicalMessage, focus model.Focus) *model.PromptTemplate {
	result, err := c.classifier.ClassifySubject(email.Subject)
	if err != nil || result.Confidence < c.minConfidence {
		return findByName(templates, string(focus))
	}
	name, err := c.classifier.GetCategoryTemplate(result.Category)
	if err != nil || name == "" {
		return findByName(templates, string(focus))
	}
	if t := findByName(templates, name); t != nil {
		return t
	}
	return findByName(templates, string(focus))
}

// selectByScoring is the keyword/domain/regex fallback (spec §4.5 step 2).
// Templates are scanned in catalog order and only a strictly higher score
// replaces the current best, which is what gives ties insertion-order
// precedence.
func (c *Catalog) selectByScoring(templates []model.PromptTemplate, email model.CanonicalMessage) *model.PromptTemplate {
	scores := categoryScores(email)
	var best *model.PromptTemplate
	var bestScore float64
	for i := range templates {
		s := scoreTemplate(templates[i], email, scores)
		if best == nil || s > bestScore {
			best = &templates[i]
			bestScore = s
		}
	}
	return best
}

func findByName(templates []model.PromptTemplate, name string) *model.PromptTemplate {
	if name == "" {
		return nil
	}
	for i := range templates {
		if templates[i].Name == name {
			return &templates[i]
		}
	}
	return nil
}
