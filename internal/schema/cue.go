package schema

import (
	_ "embed"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"

	"github.com/roach88/dynaquery/internal/dqerr"
)

//go:embed view_schema.cue
var viewSchema string

// LoadDir builds a registry from the CUE package in dir.
//
// Views are declared under the top-level "view" struct, keyed by name:
//
//	view: Order: {
//		table: "orders"
//		key:   "order_id"
//		members: [
//			{name: "orderId", column: "order_id", type: "int"},
//			{name: "amount", type: "float"},
//		]
//	}
//
// Each view is unified with the embedded #View schema before decoding.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, dqerr.SchemaDiscovery(err, "views directory %s: %v", dir, err)
	}
	if !info.IsDir() {
		return nil, dqerr.SchemaDiscovery(nil, "not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, dqerr.SchemaDiscovery(nil, "no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, dqerr.SchemaDiscovery(inst.Err, "loading CUE files: %s", details(inst.Err))
	}

	return decodeViews(ctx, ctx.BuildInstance(inst))
}

// LoadSource builds a registry from a single CUE source.
func LoadSource(filename, src string) (*Registry, error) {
	ctx := cuecontext.New()
	return decodeViews(ctx, ctx.CompileString(src, cue.Filename(filename)))
}

func decodeViews(ctx *cue.Context, value cue.Value) (*Registry, error) {
	if err := value.Err(); err != nil {
		return nil, dqerr.SchemaDiscovery(err, "building CUE value: %s", details(err))
	}

	schemaVal := ctx.CompileString(viewSchema, cue.Filename("view_schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return nil, dqerr.SchemaDiscovery(err, "view schema: %s", details(err))
	}
	viewDef := schemaVal.LookupPath(cue.ParsePath("#View"))

	views := value.LookupPath(cue.ParsePath("view"))
	if !views.Exists() {
		return nil, dqerr.SchemaDiscovery(nil, "no views declared")
	}

	iter, err := views.Fields()
	if err != nil {
		return nil, dqerr.SchemaDiscovery(err, "iterating views: %s", details(err))
	}

	var defs []ViewDef
	for iter.Next() {
		name := iter.Label()
		v := viewDef.Unify(iter.Value())
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, dqerr.SchemaDiscovery(err, "view %s: %s", name, details(err))
		}

		var def ViewDef
		if err := v.Decode(&def); err != nil {
			return nil, dqerr.SchemaDiscovery(err, "view %s: decode: %v", name, err)
		}
		def.Name = name
		defs = append(defs, def)
	}

	return Build(defs...)
}

// details flattens a CUE error list including positions.
func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}
