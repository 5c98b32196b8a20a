package blackboard

import (
	"context"
	"encoding/json"
	"reflect"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/types"
)

// Store persists runtime global variables between sessions.
type Store interface {
	Save(ctx context.Context, name string, b *Blackboard) error
	// Load restores saved globals into b. It returns an ErrNotFound error
	// when nothing was saved under name.
	Load(ctx context.Context, name string, b *Blackboard) error
	Delete(ctx context.Context, name string) error
}

// encodeGlobals renders every runtime global as JSON.
func encodeGlobals(b *Blackboard) (map[string][]byte, error) {
	snap := b.GlobalSnapshot()
	out := make(map[string][]byte, len(snap))
	for k, v := range snap {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, types.Errorf(types.ErrStorage, "encode global %q", k).WithCause(err)
		}
		out[k] = data
	}
	return out, nil
}

// restoreGlobals decodes each value into its template's type and writes it.
// Keys without a template are skipped.
func restoreGlobals(b *Blackboard, values map[string][]byte) error {
	for key, raw := range values {
		var value any
		if t := b.GlobalType(key); t != nil {
			ptr := reflect.New(t)
			if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
				return types.Errorf(types.ErrStorage, "decode global %q", key).WithCause(err)
			}
			value = ptr.Elem().Interface()
		} else if err := json.Unmarshal(raw, &value); err != nil {
			return types.Errorf(types.ErrStorage, "decode global %q", key).WithCause(err)
		}
		if err := b.SetGlobalValue(key, value); err != nil {
			if types.IsErrorCode(err, types.ErrVariableNotFound) {
				b.logger.Warn("skipping snapshot value without template", zap.String("key", key))
				continue
			}
			return err
		}
	}
	return nil
}
