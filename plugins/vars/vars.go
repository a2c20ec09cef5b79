// Package vars provides set_vars, a side-effect free action that returns its
// evaluated inputs so later steps can refer to them as one named object.
package vars

import (
	"context"

	"github.com/mohae/deepcopy"

	"github.com/hexastack/agentic/runtime"
	"github.com/hexastack/agentic/runtime/schema"
)

const ActionName = "set_vars"

type SetVars struct{}

var _ runtime.Action = SetVars{}

func (SetVars) Name() string { return ActionName }

func (SetVars) Description() string {
	return "Returns its inputs unchanged; use it to name computed values"
}

func (SetVars) InputSchema() schema.Schema    { return schema.AnyObject() }
func (SetVars) OutputSchema() schema.Schema   { return schema.AnyObject() }
func (SetVars) SettingsSchema() schema.Schema { return nil }

func (SetVars) Execute(_ context.Context, args runtime.ActionArgs) (map[string]any, error) {
	out, _ := deepcopy.Copy(args.Input).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func Register(r *runtime.Registry) error {
	return r.Register(SetVars{})
}
