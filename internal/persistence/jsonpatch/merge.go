package jsonpatch

// MergeApply applies an RFC 7396 merge patch to base and returns the result.
// base is modified in place when it is an object; patch is never aliased.
func MergeApply(base, patch any) any {
	p, ok := patch.(map[string]any)
	if !ok {
		return Clone(patch)
	}
	obj, ok := base.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	for _, k := range sortedKeys(p) {
		pv := p[k]
		if pv == nil {
			delete(obj, k)
			continue
		}
		if cur, exists := obj[k]; exists {
			obj[k] = MergeApply(cur, pv)
		} else {
			obj[k] = MergeApply(nil, pv)
		}
	}
	return obj
}

// MergeDiff returns a merge patch that turns from into to. Identical objects
// yield {}; identical scalars or arrays yield the target itself.
func MergeDiff(from, to any) any {
	if p, changed := mergeDiff(from, to); changed {
		return p
	}
	if _, ok := to.(map[string]any); ok {
		return map[string]any{}
	}
	return Clone(to)
}

func mergeDiff(from, to any) (any, bool) {
	if Equal(from, to) {
		return nil, false
	}
	tobj, ok := to.(map[string]any)
	if !ok {
		return Clone(to), true
	}
	fobj, ok := from.(map[string]any)
	if !ok {
		return Clone(to), true
	}
	patch := map[string]any{}
	for _, k := range sortedKeys(fobj) {
		if _, ok := tobj[k]; !ok {
			patch[k] = nil
		}
	}
	for _, k := range sortedKeys(tobj) {
		fv, ok := fobj[k]
		if !ok {
			patch[k] = Clone(tobj[k])
			continue
		}
		if child, changed := mergeDiff(fv, tobj[k]); changed {
			patch[k] = child
		}
	}
	return patch, true
}
