package eval

import (
	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func init() {
	specialForms["var-get"] = varGet
	specialForms["var-set"] = varSet
	specialForms["map-get?"] = mapGet
	specialForms["map-set"] = mapSet
	specialForms["map-insert"] = mapInsert
	specialForms["map-delete"] = mapDelete
	for _, name := range []string{"var-get", "var-set", "map-get?", "map-set", "map-insert", "map-delete"} {
		sizedForms[name] = true
	}
}

func (x *execState) dataVar(cc *callCtx, n *ast.Node) (*DataVar, error) {
	if n.Kind != ast.KindAtom {
		return nil, faultf(CodeInvalidSyntax, "expected a data-var name")
	}
	dv, ok := cc.contract.Vars[n.Name]
	if !ok {
		return nil, faultf(CodeUndefinedName, "no data-var named %q", n.Name)
	}
	return dv, nil
}

func (x *execState) dataMap(cc *callCtx, n *ast.Node) (*Map, error) {
	if n.Kind != ast.KindAtom {
		return nil, faultf(CodeInvalidSyntax, "expected a map name")
	}
	m, ok := cc.contract.Maps[n.Name]
	if !ok {
		return nil, faultf(CodeUndefinedName, "no map named %q", n.Name)
	}
	return m, nil
}

func varGet(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("var-get", args, 1, 1); err != nil {
		return nil, err
	}
	dv, err := x.dataVar(cc, args[0])
	if err != nil {
		return nil, err
	}
	v, ok, err := x.read(store.DataVarKey(cc.contract.ID.ID(), dv.Name))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faultf(CodeUndefinedName, "data-var %s is not initialized", dv.Name)
	}
	if err := x.chargeSized("var-get", v); err != nil {
		return nil, err
	}
	return v, nil
}

func varSet(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("var-set", args, 2, 2); err != nil {
		return nil, err
	}
	dv, err := x.dataVar(cc, args[0])
	if err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	ok, err := x.typeCheck(cost.OpTypeCheck, dv.Type, v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, typeErrorf("data-var %s expects %s, got %s", dv.Name, dv.Type, v.Type())
	}
	if err := x.chargeSized("var-set", v); err != nil {
		return nil, err
	}
	if err := x.write(cc, store.DataVarKey(cc.contract.ID.ID(), dv.Name), v); err != nil {
		return nil, err
	}
	return value.Bool(true), nil
}

// mapKey evaluates and type checks a map key and returns it with its
// storage key.
func (x *execState) mapKey(cc *callCtx, b *bindings, m *Map, n *ast.Node) (string, value.Value, error) {
	k, err := x.eval(cc, b, n)
	if err != nil {
		return "", nil, err
	}
	ok, err := x.typeCheck(cost.OpTypeCheck, m.Key, k)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, typeErrorf("map %s expects key %s, got %s", m.Name, m.Key, k.Type())
	}
	return store.MapEntryKey(cc.contract.ID.ID(), m.Name, value.Serialize(k)), k, nil
}

func (x *execState) mapValue(cc *callCtx, b *bindings, m *Map, n *ast.Node) (value.Value, error) {
	v, err := x.eval(cc, b, n)
	if err != nil {
		return nil, err
	}
	ok, err := x.typeCheck(cost.OpTypeCheck, m.Value, v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, typeErrorf("map %s expects value %s, got %s", m.Name, m.Value, v.Type())
	}
	return v, nil
}

func mapGet(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("map-get?", args, 2, 2); err != nil {
		return nil, err
	}
	m, err := x.dataMap(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, k, err := x.mapKey(cc, b, m, args[1])
	if err != nil {
		return nil, err
	}
	v, ok, err := x.read(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return value.None(), x.chargeSized("map-get?", k)
	}
	if err := x.chargeSized("map-get?", k, v); err != nil {
		return nil, err
	}
	return value.Some(v), nil
}

func mapSet(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("map-set", args, 3, 3); err != nil {
		return nil, err
	}
	m, err := x.dataMap(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, k, err := x.mapKey(cc, b, m, args[1])
	if err != nil {
		return nil, err
	}
	v, err := x.mapValue(cc, b, m, args[2])
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("map-set", k, v); err != nil {
		return nil, err
	}
	if err := x.write(cc, key, v); err != nil {
		return nil, err
	}
	return value.Bool(true), nil
}

// map-insert writes only when the key is absent and reports whether it
// did.
func mapInsert(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("map-insert", args, 3, 3); err != nil {
		return nil, err
	}
	m, err := x.dataMap(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, k, err := x.mapKey(cc, b, m, args[1])
	if err != nil {
		return nil, err
	}
	v, err := x.mapValue(cc, b, m, args[2])
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("map-insert", k, v); err != nil {
		return nil, err
	}
	_, exists, err := x.frame.overlay.Get(x.ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return value.Bool(false), nil
	}
	if err := x.write(cc, key, v); err != nil {
		return nil, err
	}
	return value.Bool(true), nil
}

func mapDelete(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("map-delete", args, 2, 2); err != nil {
		return nil, err
	}
	m, err := x.dataMap(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, k, err := x.mapKey(cc, b, m, args[1])
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("map-delete", k); err != nil {
		return nil, err
	}
	_, exists, err := x.frame.overlay.Get(x.ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return value.Bool(false), nil
	}
	if err := x.remove(cc, key); err != nil {
		return nil, err
	}
	return value.Bool(true), nil
}
