package blackboard

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/config"
)

// TemplatesFromConfig resolves configured variables into templates.
func TemplatesFromConfig(cfg config.BlackboardConfig) (globals, locals []Var, err error) {
	if globals, err = resolveVars(cfg.Globals); err != nil {
		return nil, nil, fmt.Errorf("globals: %w", err)
	}
	if locals, err = resolveVars(cfg.Locals); err != nil {
		return nil, nil, fmt.Errorf("locals: %w", err)
	}
	return globals, locals, nil
}

func resolveVars(vars []config.VarConfig) ([]Var, error) {
	out := make([]Var, 0, len(vars))
	for _, v := range vars {
		value, err := v.Resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, Var{Key: v.Key, Value: value})
	}
	return out, nil
}

// FromConfig builds a blackboard holding the configured templates.
func FromConfig(cfg config.BlackboardConfig, opts ...Option) (*Blackboard, error) {
	globals, locals, err := TemplatesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return New(append(opts, WithGlobals(globals...), WithLocals(locals...))...), nil
}

// Reload upserts the configured templates. Keys that disappeared from the
// configuration stay; runtime values pick the new templates up after
// ClearRuntimeVars.
func (b *Blackboard) Reload(cfg config.BlackboardConfig) error {
	globals, locals, err := TemplatesFromConfig(cfg)
	if err != nil {
		return err
	}
	for _, v := range globals {
		b.AddGlobal(v.Key, v.Value)
	}
	for _, v := range locals {
		b.AddLocal(v.Key, v.Value)
	}
	b.logger.Info("templates reloaded",
		zap.Int("globals", len(globals)),
		zap.Int("locals", len(locals)))
	return nil
}
