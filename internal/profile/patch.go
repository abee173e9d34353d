package profile

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"

	"github.com/goccy/go-json"
)

// Patch is a partial profile update applied as one step.
//
// Every non-nil field of Set overwrites the current answer. Every name in
// Clear resets that field to unanswered. Clear is applied after Set, so a
// field named in both ends up unanswered.
type Patch struct {
	Set   Profile
	Clear []string
}

// Apply returns the result of merging patch into p. p is not modified and
// the result shares no memory with either argument.
//
// Fields not mentioned by the patch are left untouched, and applying the
// same patch twice gives the same profile as applying it once. Unknown
// names in Clear are ignored.
func (p Profile) Apply(patch Patch) Profile {
	var out Profile
	dst := reflect.ValueOf(&out).Elem()
	cur := reflect.ValueOf(p)
	set := reflect.ValueOf(patch.Set)

	for _, f := range fields {
		v := set.FieldByIndex(f.index)
		if v.IsNil() {
			v = cur.FieldByIndex(f.index)
		}
		if slices.Contains(patch.Clear, f.Name) || v.IsNil() {
			continue
		}
		dst.FieldByIndex(f.index).Set(cloneValue(v))
	}
	return out
}

func cloneValue(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Slice {
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(c, v)
		return c
	}
	c := reflect.New(v.Type().Elem())
	c.Elem().Set(v.Elem())
	return c
}

// Touches reports whether the patch sets or clears the named field.
func (patch Patch) Touches(name string) bool {
	if slices.Contains(patch.Clear, name) {
		return true
	}
	f, ok := fieldByName[name]
	if !ok {
		return false
	}
	return !patch.Set.field(f).IsNil()
}

// IsZero reports whether the patch changes nothing.
func (patch Patch) IsZero() bool {
	return len(patch.Clear) == 0 && patch.Set.IsEmpty()
}

// Merge returns a patch equivalent to applying patch and then other.
func (patch Patch) Merge(other Patch) Patch {
	set := patch.Set.Apply(Patch{Set: other.Set})
	var clear []string
	for _, name := range patch.Clear {
		if !other.Touches(name) && !slices.Contains(clear, name) {
			clear = append(clear, name)
		}
	}
	for _, name := range other.Clear {
		if !slices.Contains(clear, name) {
			clear = append(clear, name)
		}
	}
	return Patch{Set: set.Apply(Patch{Clear: other.Clear}), Clear: clear}
}

// DecodeMergePatch reads a JSON merge patch: present keys overwrite,
// explicit nulls clear. Unknown keys are rejected.
func DecodeMergePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, fmt.Errorf("decode merge patch: %w", err)
	}

	var patch Patch
	for name, value := range raw {
		if _, ok := fieldByName[name]; !ok {
			return Patch{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			patch.Clear = append(patch.Clear, name)
		}
	}
	slices.Sort(patch.Clear)

	if err := json.Unmarshal(data, &patch.Set); err != nil {
		return Patch{}, fmt.Errorf("decode merge patch: %w", err)
	}
	return patch, nil
}
