package repositories

import (
	"context"
	"sort"

	"kalpe/internal/models"
)

type memoryFraudRules struct {
	s *MemoryStore
}

func (r *memoryFraudRules) Create(ctx context.Context, rule *models.FraudRule) error {
	d := r.s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.ruleNames[rule.Name]; ok {
		return ErrDuplicateFraudRule
	}
	if rule.ID == "" {
		rule.ID = models.NewID()
	}
	ts := now()
	rule.CreatedAt, rule.UpdatedAt = ts, ts
	d.rules[rule.ID] = rule.Clone()
	d.ruleNames[rule.Name] = rule.ID
	id, name := rule.ID, rule.Name
	r.s.onRollback(func() {
		delete(d.rules, id)
		delete(d.ruleNames, name)
	})
	return nil
}

func (r *memoryFraudRules) GetByID(ctx context.Context, id string) (*models.FraudRule, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	rule, ok := d.rules[id]
	if !ok {
		return nil, ErrFraudRuleNotFound
	}
	return rule.Clone(), nil
}

func (r *memoryFraudRules) GetByName(ctx context.Context, name string) (*models.FraudRule, error) {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.ruleNames[name]
	if !ok {
		return nil, ErrFraudRuleNotFound
	}
	return d.rules[id].Clone(), nil
}

func (r *memoryFraudRules) Update(ctx context.Context, rule *models.FraudRule) error {
	d := r.s.data
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.rules[rule.ID]
	if !ok {
		return ErrFraudRuleNotFound
	}
	if owner, taken := d.ruleNames[rule.Name]; taken && owner != rule.ID {
		return ErrDuplicateFraudRule
	}
	next := rule.Clone()
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = now()
	delete(d.ruleNames, current.Name)
	d.ruleNames[next.Name] = next.ID
	d.rules[next.ID] = next
	r.s.onRollback(func() {
		delete(d.ruleNames, next.Name)
		d.ruleNames[current.Name] = current.ID
		d.rules[current.ID] = current
	})
	return nil
}

func (r *memoryFraudRules) List(ctx context.Context) ([]*models.FraudRule, error) {
	return r.list(false), nil
}

func (r *memoryFraudRules) ListActive(ctx context.Context) ([]*models.FraudRule, error) {
	return r.list(true), nil
}

func (r *memoryFraudRules) list(activeOnly bool) []*models.FraudRule {
	d := r.s.data
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*models.FraudRule, 0, len(d.rules))
	for _, rule := range d.rules {
		if activeOnly && !rule.IsActive {
			continue
		}
		out = append(out, rule.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
