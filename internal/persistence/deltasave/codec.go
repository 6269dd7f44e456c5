package deltasave

import (
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"nebula4x.dev/internal/persistence/jsonpatch"
)

//go:embed delta_save.schema.json
var schemaText string

var schema = jsonschema.MustCompileString("delta_save.schema.json", schemaText)

// Parse decodes a delta-save document. Missing format means v1. Patch
// entries may be {patch, state_digest} objects or bare patch values.
func Parse(data []byte) (*File, error) {
	v, err := jsonpatch.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is not an object", ErrMalformed)
	}

	f := &File{}
	if s, ok := root["format"].(string); ok {
		f.Format = s
	}
	if f.Format == "" {
		f.Format = FormatV1
	}
	if s, ok := root["patch_kind"].(string); ok {
		f.PatchKind = PatchKind(s)
	}
	if _, err := f.kind(); err != nil {
		return nil, err
	}
	for _, key := range []string{"base", "patches"} {
		if _, ok := root[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, key)
		}
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	f.Base = root["base"]
	if s, ok := root["base_state_digest"].(string); ok {
		f.BaseStateDigest = s
	}
	for i, pv := range root["patches"].([]any) {
		var p Patch
		if obj, ok := pv.(map[string]any); ok {
			patch, ok := obj["patch"]
			if !ok {
				return nil, fmt.Errorf("%w: patch entry %d missing 'patch'", ErrMalformed, i)
			}
			p.Patch = patch
			if s, ok := obj["state_digest"].(string); ok {
				p.StateDigest = s
			}
		} else {
			p.Patch = pv
		}
		f.Patches = append(f.Patches, p)
	}
	return f, nil
}

// Encode serializes f. v2 files always carry patch_kind.
func (f *File) Encode(indent int) ([]byte, error) {
	kind, err := f.kind()
	if err != nil {
		return nil, err
	}
	root := map[string]any{
		"format": f.Format,
		"base":   f.Base,
	}
	if f.Format == "" {
		root["format"] = FormatV1
	}
	if f.Format == FormatV2 {
		root["patch_kind"] = string(kind)
	}
	if f.BaseStateDigest != "" {
		root["base_state_digest"] = f.BaseStateDigest
	}
	patches := make([]any, 0, len(f.Patches))
	for _, p := range f.Patches {
		e := map[string]any{"patch": p.Patch}
		if p.StateDigest != "" {
			e["state_digest"] = p.StateDigest
		}
		patches = append(patches, e)
	}
	root["patches"] = patches
	return jsonpatch.Encode(root, indent)
}
