package rewrite

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Persister 规则持久化后端
type Persister interface {
	LoadRules(ctx context.Context) ([]Rule, error)
	SaveRules(ctx context.Context, rules []Rule) error
}

// Store 有序的重写规则列表。
// 每次修改先写入 Persister，成功后才替换内存中的列表。
type Store struct {
	mu    sync.RWMutex
	rules []Rule

	persist Persister
	log     zerolog.Logger
}

// NewStore 创建规则存储，persist 可以为 nil（仅内存）
func NewStore(persist Persister, log zerolog.Logger) *Store {
	return &Store{persist: persist, log: log}
}

// Load 从持久化后端重新加载全部规则
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}

	rules, err := s.persist.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("加载重写规则失败: %w", err)
	}

	loaded := make([]Rule, 0, len(rules))
	for i := range rules {
		r := rules[i]
		if err := r.Normalize(); err != nil {
			s.log.Warn().Err(err).Int("index", i).Msg("rewrite: skipping stored rule")
			continue
		}
		loaded = append(loaded, r)
	}

	s.mu.Lock()
	s.rules = loaded
	s.mu.Unlock()

	rulesTotal.Set(float64(len(loaded)))
	s.log.Info().Int("rules", len(loaded)).Msg("rewrite: rules loaded")

	return nil
}

// List 返回主机记录或记录值包含 param 的规则副本
func (s *Store) List(param string) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Contains(param) {
			out = append(out, r)
		}
	}

	return out
}

// Len 规则数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rules)
}

// Add 追加一条规则，相同的主机记录与记录值只允许存在一条
func (s *Store) Add(ctx context.Context, rule Rule) error {
	if err := rule.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.containsLocked(rule) {
		return fmt.Errorf("主机记录 %s: %w", rule.Domain, ErrDuplicate)
	}

	next := append(slices.Clone(s.rules), rule)
	if err := s.commitLocked(ctx, next); err != nil {
		return err
	}

	mutationsTotal.WithLabelValues("add").Inc()
	s.log.Debug().Str("domain", rule.Domain).Str("answer", rule.Answer).Int("total", len(next)).Msg("rewrite: added element")

	return nil
}

// Delete 删除所有与 rule 相同的规则，返回删除条数；不存在时不报错
func (s *Store) Delete(ctx context.Context, rule Rule) (int, error) {
	if err := rule.Normalize(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Equal(rule) {
			continue
		}
		next = append(next, r)
	}

	removed := len(s.rules) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := s.commitLocked(ctx, next); err != nil {
		return 0, err
	}

	mutationsTotal.WithLabelValues("delete").Inc()
	s.log.Debug().Str("domain", rule.Domain).Str("answer", rule.Answer).Msg("rewrite: removed element")

	return removed, nil
}

// Update 原位替换 target 为 update
func (s *Store) Update(ctx context.Context, target, update Rule) error {
	if err := target.Normalize(); err != nil {
		return err
	}
	if err := update.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.containsLocked(update) {
		return fmt.Errorf("主机记录 %s: %w", update.Domain, ErrDuplicate)
	}

	idx := slices.IndexFunc(s.rules, target.Equal)
	if idx == -1 {
		return ErrNotFound
	}

	next := slices.Clone(s.rules)
	next[idx] = update
	if err := s.commitLocked(ctx, next); err != nil {
		return err
	}

	mutationsTotal.WithLabelValues("update").Inc()
	s.log.Debug().Stringer("from", target).Stringer("to", update).Msg("rewrite: updated element")

	return nil
}

// Snapshot 返回当前全部规则的副本
func (s *Store) Snapshot() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.rules)
}

func (s *Store) containsLocked(rule Rule) bool {
	return slices.ContainsFunc(s.rules, rule.Equal)
}

func (s *Store) commitLocked(ctx context.Context, next []Rule) error {
	if s.persist != nil {
		if err := s.persist.SaveRules(ctx, next); err != nil {
			return fmt.Errorf("保存重写规则失败: %w", err)
		}
	}

	s.rules = next
	rulesTotal.Set(float64(len(next)))

	return nil
}
