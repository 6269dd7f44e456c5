// Package deltasave stores a base save plus an ordered chain of patches, each
// tagged with the digest of the state it produces.
package deltasave

import (
	"errors"
	"fmt"

	"nebula4x.dev/internal/persistence/jsonpatch"
	"nebula4x.dev/internal/persistence/savejson"
)

const (
	FormatV1 = "nebula4x.delta_save.v1"
	FormatV2 = "nebula4x.delta_save.v2"
)

type PatchKind string

const (
	MergePatch PatchKind = "merge_patch"
	JSONPatch  PatchKind = "json_patch"
)

var (
	ErrUnsupportedFormat    = errors.New("unsupported delta-save format")
	ErrUnsupportedPatchKind = errors.New("unsupported delta-save patch kind")
	ErrMissingKey           = errors.New("delta-save missing key")
	ErrMalformed            = errors.New("malformed delta-save")
)

type Patch struct {
	Patch       any
	StateDigest string
}

// File is an in-memory delta-save. Base and patch values use the generic
// representation from the jsonpatch package.
type File struct {
	Format          string
	PatchKind       PatchKind
	Base            any
	BaseStateDigest string
	Patches         []Patch
}

// formatFor returns the wire format that carries kind.
func formatFor(kind PatchKind) string {
	if kind == JSONPatch {
		return FormatV2
	}
	return FormatV1
}

// kind resolves the effective patch kind and rejects format/kind mismatches.
func (f *File) kind() (PatchKind, error) {
	switch f.Format {
	case "", FormatV1:
		if f.PatchKind != "" && f.PatchKind != MergePatch {
			return "", fmt.Errorf("%w: %s with %s", ErrUnsupportedPatchKind, FormatV1, f.PatchKind)
		}
		return MergePatch, nil
	case FormatV2:
		switch f.PatchKind {
		case "", MergePatch:
			return MergePatch, nil
		case JSONPatch:
			return JSONPatch, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPatchKind, f.PatchKind)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
}

func decodeSave(text []byte) (any, error) {
	v, err := jsonpatch.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return v, nil
}

func diff(from, to any, kind PatchKind) (any, error) {
	if kind == JSONPatch {
		return jsonpatch.OperationsToValue(jsonpatch.Diff(from, to))
	}
	return jsonpatch.MergeDiff(from, to), nil
}

func apply(doc, patch any, kind PatchKind) (any, error) {
	if kind == JSONPatch {
		return jsonpatch.ApplyPatch(doc, patch)
	}
	return jsonpatch.MergeApply(doc, patch), nil
}

// Make builds a one-patch delta-save from two save documents.
func Make(baseText, targetText []byte, kind PatchKind) (*File, error) {
	if kind == "" {
		kind = MergePatch
	}
	if kind != MergePatch && kind != JSONPatch {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPatchKind, kind)
	}
	base, err := decodeSave(baseText)
	if err != nil {
		return nil, err
	}
	target, err := decodeSave(targetText)
	if err != nil {
		return nil, err
	}
	p, err := diff(base, target, kind)
	if err != nil {
		return nil, err
	}
	f := &File{Format: formatFor(kind), Base: base, Patches: []Patch{{Patch: p}}}
	if kind == JSONPatch {
		f.PatchKind = JSONPatch
	}
	if err := f.ComputeDigests(); err != nil {
		return nil, err
	}
	return f, nil
}

// Append diffs targetText against the latest reconstructed state and adds the
// result as a new patch.
func (f *File) Append(targetText []byte) error {
	kind, err := f.kind()
	if err != nil {
		return err
	}
	latest, err := f.Reconstruct(-1)
	if err != nil {
		return err
	}
	target, err := decodeSave(targetText)
	if err != nil {
		return err
	}
	p, err := diff(latest, target, kind)
	if err != nil {
		return err
	}
	d, err := savejson.StateDigestHex(targetText)
	if err != nil {
		return err
	}
	f.Patches = append(f.Patches, Patch{Patch: p, StateDigest: d})
	if f.BaseStateDigest == "" {
		if f.BaseStateDigest, err = digestValue(f.Base); err != nil {
			return err
		}
	}
	return nil
}

func clampCount(n, total int) int {
	if n < 0 || n > total {
		return total
	}
	return n
}

// Reconstruct applies the first count patches to a copy of the base. A
// negative count applies all of them.
func (f *File) Reconstruct(count int) (any, error) {
	kind, err := f.kind()
	if err != nil {
		return nil, err
	}
	st := jsonpatch.Clone(f.Base)
	n := clampCount(count, len(f.Patches))
	for i := 0; i < n; i++ {
		if st, err = apply(st, f.Patches[i].Patch, kind); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}
	return st, nil
}

// ReconstructJSON is Reconstruct encoded as JSON.
func (f *File) ReconstructJSON(count, indent int) ([]byte, error) {
	v, err := f.Reconstruct(count)
	if err != nil {
		return nil, err
	}
	return jsonpatch.Encode(v, indent)
}

func digestValue(v any) (string, error) {
	b, err := jsonpatch.Encode(v, 0)
	if err != nil {
		return "", err
	}
	return savejson.StateDigestHex(b)
}

// ComputeDigests refills the base digest and every post-patch digest,
// walking the chain once.
func (f *File) ComputeDigests() error {
	kind, err := f.kind()
	if err != nil {
		return err
	}
	if f.Format == "" {
		f.Format = FormatV1
	}
	if f.BaseStateDigest, err = digestValue(f.Base); err != nil {
		return err
	}
	st := jsonpatch.Clone(f.Base)
	for i := range f.Patches {
		if st, err = apply(st, f.Patches[i].Patch, kind); err != nil {
			return fmt.Errorf("patch %d: %w", i, err)
		}
		if f.Patches[i].StateDigest, err = digestValue(st); err != nil {
			return fmt.Errorf("patch %d: %w", i, err)
		}
	}
	return nil
}

func canonicalValue(v any) (any, error) {
	b, err := jsonpatch.Encode(v, 0)
	if err != nil {
		return nil, err
	}
	c, err := savejson.Canonicalize(b)
	if err != nil {
		return nil, err
	}
	return jsonpatch.Decode(c)
}

// Squash rebases the file on the snapshot after baseIndex patches and folds
// the rest into a single patch of outKind. No patch is emitted when the two
// snapshots are identical.
func (f *File) Squash(baseIndex int, outKind PatchKind) (*File, error) {
	if outKind == "" {
		outKind = MergePatch
	}
	if outKind != MergePatch && outKind != JSONPatch {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPatchKind, outKind)
	}
	baseV, err := f.Reconstruct(baseIndex)
	if err != nil {
		return nil, err
	}
	finalV, err := f.Reconstruct(-1)
	if err != nil {
		return nil, err
	}
	if baseV, err = canonicalValue(baseV); err != nil {
		return nil, err
	}
	if finalV, err = canonicalValue(finalV); err != nil {
		return nil, err
	}
	out := &File{Format: formatFor(outKind), Base: baseV}
	if outKind == JSONPatch {
		out.PatchKind = JSONPatch
	}
	if !jsonpatch.Equal(baseV, finalV) {
		p, err := diff(baseV, finalV, outKind)
		if err != nil {
			return nil, err
		}
		out.Patches = []Patch{{Patch: p}}
	}
	if err := out.ComputeDigests(); err != nil {
		return nil, err
	}
	return out, nil
}

// ConvertKind re-encodes every patch as kind by reconstructing each
// intermediate snapshot and diffing consecutive pairs.
func (f *File) ConvertKind(kind PatchKind) (*File, error) {
	if kind != MergePatch && kind != JSONPatch {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPatchKind, kind)
	}
	out := &File{Format: formatFor(kind), Base: jsonpatch.Clone(f.Base)}
	if kind == JSONPatch {
		out.PatchKind = JSONPatch
	}
	prev := jsonpatch.Clone(f.Base)
	for i := range f.Patches {
		next, err := f.Reconstruct(i + 1)
		if err != nil {
			return nil, err
		}
		p, err := diff(prev, next, kind)
		if err != nil {
			return nil, err
		}
		out.Patches = append(out.Patches, Patch{Patch: p})
		prev = next
	}
	if err := out.ComputeDigests(); err != nil {
		return nil, err
	}
	return out, nil
}
