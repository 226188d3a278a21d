package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/roach88/abeflag/internal/ir"
)

// hclManifest mirrors Manifest with one labelled block per module:
//
//	firing_order = ["a", "b"]
//
//	module "a" {
//	  required = true
//	  produces = ["derived.a"]
//	  runner   = "static"
//	  config   = { value = { x = 1 } }
//	}
type hclManifest struct {
	FiringOrder []string    `hcl:"firing_order"`
	Modules     []hclModule `hcl:"module,block"`
}

type hclModule struct {
	Key         string    `hcl:"key,label"`
	Required    bool      `hcl:"required,optional"`
	Requires    []string  `hcl:"requires,optional"`
	Produces    []string  `hcl:"produces,optional"`
	Runner      string    `hcl:"runner"`
	Name        string    `hcl:"name,optional"`
	Description string    `hcl:"description,optional"`
	Config      cty.Value `hcl:"config,optional"`
}

func parseHCL(data []byte, filename string) (*Manifest, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var root hclManifest
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diags
	}

	m := &Manifest{
		FiringOrder: root.FiringOrder,
		Modules:     make(map[string]ModuleSpec, len(root.Modules)),
	}
	for _, mod := range root.Modules {
		if _, dup := m.Modules[mod.Key]; dup {
			return nil, fmt.Errorf("module %q declared more than once", mod.Key)
		}
		cfg, err := ctyObject(mod.Config)
		if err != nil {
			return nil, fmt.Errorf("module %s: config: %w", mod.Key, err)
		}
		m.Modules[mod.Key] = ModuleSpec{
			Required:    mod.Required,
			Requires:    mod.Requires,
			Produces:    mod.Produces,
			Runner:      mod.Runner,
			Name:        mod.Name,
			Description: mod.Description,
			Config:      cfg,
		}
	}
	return m, nil
}

// ctyObject converts an HCL object value into a JSON tree.
func ctyObject(v cty.Value) (map[string]any, error) {
	if v.Type() == cty.NilType || v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value must be known at load time")
	}
	data, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return nil, err
	}
	tree, err := ir.DecodeValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be an object, got %T", tree)
	}
	return obj, nil
}
