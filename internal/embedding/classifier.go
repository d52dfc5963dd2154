// Package embedding defines the abstract embedding-classifier collaborator
// spec §6 names, plus a default not-ready implementation. A real classifier
// (vector search, a fine-tuned head, whatever) is swapped in by the caller;
// this repo only needs to keep the template catalog's fallback path (§4.5)
// exercised when none is configured.
package embedding

import "smart-mail-relay-go/internal/model"

// Result is the outcome of classifying a subject line.
type Result struct {
	Category   model.Category
	Confidence float64
}

// Classifier is the abstract collaborator spec §4.5/§6 names.
type Classifier interface {
	IsReady() bool
	ClassifySubject(subject string) (Result, error)
	GetCategoryTemplate(category model.Category) (string, error)
}

// NotReady is the default Classifier: it is never ready, which routes
// selectTemplate unconditionally to the template catalog's keyword/domain
// scoring fallback (spec §4.5 step 2). Swap in a real implementation of
// Classifier to enable the embedding path.
type NotReady struct{}

func (NotReady) IsReady() bool { return false }

func (NotReady) ClassifySubject(string) (Result, error) {
	return Result{}, nil
}

func (NotReady) GetCategoryTemplate(model.Category) (string, error) {
	return "", nil
}
