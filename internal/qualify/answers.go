package qualify

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/opensource-crm/harrier/internal/domain"
)

// RandomAnswerProvider picks a uniformly random answer label per rule.
// It stands in for a real conversation integration and is what the load
// generator and the default deployment use.
type RandomAnswerProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAnswerProvider creates a provider seeded from the clock.
func NewRandomAnswerProvider() *RandomAnswerProvider {
	return NewRandomAnswerProviderWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewRandomAnswerProviderWithSource creates a provider with a fixed source
// for deterministic tests.
func NewRandomAnswerProviderWithSource(src rand.Source) *RandomAnswerProvider {
	return &RandomAnswerProvider{rng: rand.New(src)}
}

// SelectAnswer returns a random label from the rule's answer table. Labels
// are sorted first so selection is reproducible under a fixed seed.
func (p *RandomAnswerProvider) SelectAnswer(_ context.Context, rule *domain.ScoringRule) (string, error) {
	if len(rule.Answers) == 0 {
		return "", fmt.Errorf("rule %s has no answers", rule.ID)
	}

	labels := make([]string, 0, len(rule.Answers))
	for label := range rule.Answers {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	p.mu.Lock()
	idx := p.rng.Intn(len(labels))
	p.mu.Unlock()

	return labels[idx], nil
}

// StaticAnswerProvider answers every question from a fixed question→label
// map. Useful for replaying a known conversation.
type StaticAnswerProvider map[string]string

// SelectAnswer returns the mapped answer for the rule's question.
func (p StaticAnswerProvider) SelectAnswer(_ context.Context, rule *domain.ScoringRule) (string, error) {
	answer, ok := p[rule.Question]
	if !ok {
		return "", fmt.Errorf("no answer configured for question %q", rule.Question)
	}
	return answer, nil
}
