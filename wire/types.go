package wire

import "github.com/svi-lang/svivm/types"

// ReduceType produces a self-describing document for t. OBJECT types are
// inlined in full (properties and all) rather than referenced by id, since
// a remote worker receiving this document has no shared Arena to resolve
// an id against; a property that refers back to its own object type emits
// a `{"TAG":"OBJECT","ID":...,"REF":true}` back-reference instead of
// recursing, per spec.md §9's design note on recursive object types.
func (w *Wire) ReduceType(t *types.Type) map[string]any {
	tr := w.newTransfer()
	return tr.reduceType(t)
}

func (tr *transfer) reduceType(t *types.Type) map[string]any {
	if t == nil {
		return map[string]any{"TAG": "NIL"}
	}
	switch t.Kind {
	case types.KindObject:
		return tr.reduceObjectType(t.Obj)
	case types.KindMap:
		return map[string]any{"TAG": "MAP", "ELEM": tr.reduceType(t.Elem)}
	case types.KindEnumerable:
		return map[string]any{"TAG": "ENUMERABLE", "ELEM": tr.reduceType(t.Elem)}
	case types.KindStream:
		return map[string]any{"TAG": "STREAM", "ELEM": tr.reduceType(t.Elem)}
	case types.KindResource:
		return map[string]any{"TAG": "RESOURCE", "ELEM": tr.reduceType(t.Elem)}
	case types.KindLambda0:
		return map[string]any{"TAG": "LAMBDA0", "ELEM": tr.reduceType(t.Elem)}
	case types.KindLambda1:
		return map[string]any{"TAG": "LAMBDA1", "PARAM": tr.reduceType(t.Param), "ELEM": tr.reduceType(t.Elem)}
	case types.KindOpaque:
		return map[string]any{"TAG": "OPAQUE", "NAME": t.Name}
	default:
		return map[string]any{"TAG": t.Kind.String()}
	}
}

func (tr *transfer) reduceObjectType(id types.ObjectTypeID) map[string]any {
	if tr.inProgress[id] {
		return map[string]any{"TAG": "OBJECT", "ID": uint64(id), "REF": true}
	}
	ot, ok := tr.w.Arena.Get(id)
	if !ok {
		return map[string]any{"TAG": "OBJECT", "ID": uint64(id), "REF": true}
	}
	tr.inProgress[id] = true
	defer delete(tr.inProgress, id)

	props := make(map[string]any, len(ot.Props))
	for name, pt := range ot.Props {
		props[name] = tr.reduceType(pt)
	}
	doc := map[string]any{"TAG": "OBJECT", "ID": uint64(id), "PROPS": props, "FINAL": ot.Final}
	if ot.HasParent {
		doc["PARENT"] = uint64(ot.Parent)
	}
	return doc
}

// ProduceType rebuilds a *types.Type from a document returned by
// ReduceType, allocating fresh entries in w.Arena for any OBJECT type
// definitions it carries.
func (w *Wire) ProduceType(doc map[string]any) *types.Type {
	tr := w.newTransfer()
	return tr.produceType(doc)
}

func (tr *transfer) produceType(doc map[string]any) *types.Type {
	switch tagOf(doc) {
	case "", "NIL":
		return nil
	case "OBJECT":
		return types.ObjectOf(tr.produceObjectType(doc))
	case "MAP":
		return types.MapOf(tr.produceType(asDoc(doc["ELEM"])))
	case "ENUMERABLE":
		return types.EnumerableOf(tr.produceType(asDoc(doc["ELEM"])))
	case "STREAM":
		return types.StreamOf(tr.produceType(asDoc(doc["ELEM"])))
	case "RESOURCE":
		return types.ResourceOf(tr.produceType(asDoc(doc["ELEM"])))
	case "LAMBDA0":
		return types.Lambda0(tr.produceType(asDoc(doc["ELEM"])))
	case "LAMBDA1":
		return types.Lambda1(tr.produceType(asDoc(doc["PARAM"])), tr.produceType(asDoc(doc["ELEM"])))
	case "OPAQUE":
		name, _ := doc["NAME"].(string)
		return types.Opaque(name)
	case "STRING":
		return types.String()
	case "NUMBER":
		return types.Number()
	case "BOOLEAN":
		return types.Boolean()
	case "ERROR":
		return types.ErrorType()
	case "VOID":
		return types.Void()
	case "UNIT":
		return types.Unit()
	case "TYPE":
		return types.TypeType()
	case "AMBIGUOUS":
		return types.Ambiguous()
	case "THIS":
		return types.This()
	case "CONTRADICTION":
		return types.Contradiction()
	default:
		return types.Ambiguous()
	}
}

func (tr *transfer) produceObjectType(doc map[string]any) types.ObjectTypeID {
	remoteID, _ := asUint64(doc["ID"])

	if ref, _ := doc["REF"].(bool); ref {
		if local, ok := tr.remote[remoteID]; ok {
			return local
		}
		id := tr.w.Arena.New()
		tr.remote[remoteID] = id
		return id
	}
	if local, ok := tr.remote[remoteID]; ok {
		return local
	}

	id := tr.w.Arena.New()
	tr.remote[remoteID] = id

	if parentID, ok := asUint64(doc["PARENT"]); ok {
		local, ok := tr.remote[parentID]
		if ok {
			tr.w.Arena.SetParent(id, local)
		}
	}
	if props, ok := doc["PROPS"].(map[string]any); ok {
		for name, pd := range props {
			tr.w.Arena.SetProp(id, name, tr.produceType(asDoc(pd)))
		}
	}
	if final, _ := doc["FINAL"].(bool); final {
		tr.w.Arena.Finalize(id)
	}
	return id
}
