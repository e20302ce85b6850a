package wire

import "github.com/svi-lang/svivm/values"

// ReduceValue produces a self-describing document for v, suitable for
// shipping to a worker that shares no memory with the producing VM
// (spec.md §4.4, §4.5). Mutable containers (Enumeration, Map, Object) are
// serialized by value — contents, not identity — since identity has no
// meaning once copied to another process.
func (w *Wire) ReduceValue(v *values.Value) map[string]any {
	tr := w.newTransfer()
	return tr.reduceValue(v)
}

func (tr *transfer) reduceValue(v *values.Value) map[string]any {
	if v == nil {
		return map[string]any{"TAG": "VOID"}
	}
	doc := map[string]any{"TYPE": tr.reduceType(v.Decl)}
	switch v.Tag {
	case values.TagVoid:
		doc["TAG"] = "VOID"
	case values.TagString:
		doc["TAG"] = "STRING"
		doc["VALUE"] = v.Str
	case values.TagNumber:
		doc["TAG"] = "NUMBER"
		doc["VALUE"] = v.Num
	case values.TagBoolean:
		doc["TAG"] = "BOOLEAN"
		doc["VALUE"] = v.Bool
	case values.TagLocation:
		doc["TAG"] = "LOCATION"
		doc["AFFINITY"] = v.Loc.Affinity.String()
		doc["NAME"] = v.Loc.Name
	case values.TagType:
		doc["TAG"] = "TYPE"
		doc["VALUE"] = tr.reduceType(v.Typ)
	case values.TagOType:
		doc["TAG"] = "OTYPE"
		doc["VALUE"] = tr.reduceObjectType(v.OType)
	case values.TagFunction:
		doc["TAG"] = "FUNCTION"
		doc["BACKEND"] = v.Fn.Backend
		doc["NAME"] = v.Fn.Name
		curried := make([]any, len(v.Fn.Curried))
		for i, c := range v.Fn.Curried {
			curried[i] = tr.reduceValue(c)
		}
		doc["CURRIED"] = curried
	case values.TagStream:
		doc["TAG"] = "STREAM"
		doc["ID"] = v.StreamID
	case values.TagResource:
		doc["TAG"] = "RESOURCE"
		doc["KIND"] = v.Res.Kind
		doc["OWNER"] = v.Res.OwnerNode
		doc["REPLICABLE"] = v.Res.Replicable
	case values.TagEnumeration:
		doc["TAG"] = "ENUMERATION"
		items := v.Enum.Snapshot()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = tr.reduceValue(it)
		}
		doc["ITEMS"] = out
		doc["ELEM"] = tr.reduceType(v.Enum.ElemType)
	case values.TagMap:
		doc["TAG"] = "MAPVALUE"
		entries := map[string]any{}
		for _, k := range v.Map.Keys() {
			val, _ := v.Map.Get(k)
			entries[k] = tr.reduceValue(val)
		}
		doc["ENTRIES"] = entries
		doc["ELEM"] = tr.reduceType(v.Map.ElemType)
	case values.TagObject:
		doc["TAG"] = "OBJECTVALUE"
		doc["OTYPE"] = tr.reduceObjectType(v.Obj.OType)
		props := map[string]any{}
		for name, pv := range v.Obj.Snapshot() {
			props[name] = tr.reduceValue(pv)
		}
		doc["PROPS"] = props
	case values.TagContextID:
		doc["TAG"] = "CONTEXTID"
		doc["VALUE"] = v.ContextID
	case values.TagJobID:
		doc["TAG"] = "JOBID"
		doc["SEQUENCE"] = v.JobID.Sequence
		doc["EXTERNAL"] = v.JobID.External
	case values.TagReturnValueMap:
		doc["TAG"] = "RETURNVALUEMAP"
		n := v.RVMap.Len()
		out := make([]any, n)
		for i, r := range v.RVMap.Ordered(n) {
			out[i] = tr.reduceValue(r)
		}
		doc["VALUES"] = out
	default:
		doc["TAG"] = "VOID"
	}
	return doc
}

// ProduceValue rebuilds a *values.Value from a document returned by
// ReduceValue, allocating any OBJECT type definitions it needs into
// w.Arena.
func (w *Wire) ProduceValue(doc map[string]any) *values.Value {
	tr := w.newTransfer()
	return tr.produceValue(doc)
}

func (tr *transfer) produceValue(doc map[string]any) *values.Value {
	decl := tr.produceType(asDoc(doc["TYPE"]))
	switch tagOf(doc) {
	case "VOID", "":
		return values.NewVoid()
	case "STRING":
		s, _ := doc["VALUE"].(string)
		return values.NewString(s)
	case "NUMBER":
		n, _ := doc["VALUE"].(float64)
		return values.NewNumber(n)
	case "BOOLEAN":
		b, _ := doc["VALUE"].(bool)
		return values.NewBoolean(b)
	case "LOCATION":
		name, _ := doc["NAME"].(string)
		aff, _ := doc["AFFINITY"].(string)
		return values.NewLocation(values.Location{Affinity: affinityFromString(aff), Name: name}, decl)
	case "TYPE":
		return values.NewType(tr.produceType(asDoc(doc["VALUE"])))
	case "OTYPE":
		return values.NewOType(tr.produceObjectType(asDoc(doc["VALUE"])))
	case "FUNCTION":
		backend, _ := doc["BACKEND"].(string)
		name, _ := doc["NAME"].(string)
		fn := &values.Function{Backend: backend, Name: name}
		if curried, ok := doc["CURRIED"].([]any); ok {
			for _, c := range curried {
				fn = fn.Curry(tr.produceValue(asDoc(c)))
			}
		}
		v := &values.Value{Tag: values.TagFunction, Decl: decl, Fn: fn}
		return v
	case "STREAM":
		id, _ := asUint64(doc["ID"])
		return &values.Value{Tag: values.TagStream, Decl: decl, StreamID: id}
	case "RESOURCE":
		kind, _ := doc["KIND"].(string)
		owner, _ := doc["OWNER"].(string)
		repl, _ := doc["REPLICABLE"].(bool)
		return &values.Value{Tag: values.TagResource, Decl: decl, Res: &values.Resource{Kind: kind, OwnerNode: owner, Replicable: repl}}
	case "ENUMERATION":
		elem := tr.produceType(asDoc(doc["ELEM"]))
		enum := values.NewEnumeration(elem)
		if items, ok := doc["ITEMS"].([]any); ok {
			for _, it := range items {
				enum.Append(tr.produceValue(asDoc(it)))
			}
		}
		return &values.Value{Tag: values.TagEnumeration, Decl: decl, Enum: enum}
	case "MAPVALUE":
		elem := tr.produceType(asDoc(doc["ELEM"]))
		m := values.NewMap(elem)
		if entries, ok := doc["ENTRIES"].(map[string]any); ok {
			for k, val := range entries {
				m.Set(k, tr.produceValue(asDoc(val)))
			}
		}
		return &values.Value{Tag: values.TagMap, Decl: decl, Map: m}
	case "OBJECTVALUE":
		otID := tr.produceObjectType(asDoc(doc["OTYPE"]))
		obj := values.NewObject(otID)
		if props, ok := doc["PROPS"].(map[string]any); ok {
			for name, pv := range props {
				obj.Set(name, tr.produceValue(asDoc(pv)))
			}
		}
		return &values.Value{Tag: values.TagObject, Decl: decl, Obj: obj}
	case "CONTEXTID":
		id, _ := asUint64(doc["VALUE"])
		return values.NewContextID(id)
	case "JOBID":
		seq, _ := asUint64(doc["SEQUENCE"])
		ext, _ := doc["EXTERNAL"].(string)
		return values.NewJobID(values.JobIdentity{Sequence: seq, External: ext})
	case "RETURNVALUEMAP":
		rvm := values.NewReturnValueMap()
		if vs, ok := doc["VALUES"].([]any); ok {
			for i, v := range vs {
				rvm.Put(i, tr.produceValue(asDoc(v)))
			}
		}
		return values.NewReturnValueMapValue(rvm)
	default:
		return values.NewVoid()
	}
}

func affinityFromString(s string) values.Affinity {
	switch s {
	case "SHARED":
		return values.AffinityShared
	case "FUNCTION":
		return values.AffinityFunction
	case "PRIMITIVE":
		return values.AffinityPrimitive
	case "OBJECTPROP":
		return values.AffinityObjectProp
	default:
		return values.AffinityLocal
	}
}

