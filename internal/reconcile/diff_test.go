package reconcile

import (
	"reflect"
	"testing"

	"github.com/loomworks/loom/internal/site"
)

func makeSet(entries map[string]string) *site.ResourceSet {
	set := site.NewResourceSet()
	for path, contents := range entries {
		set.Add(&site.Resource{
			Path:          path,
			ContentHash:   site.HashBytes([]byte(contents)),
			UnencodedSize: int64(len(contents)),
		})
	}
	return set
}

func kindsByPath(ops []ResourceOp) map[string]OpKind {
	kinds := make(map[string]OpKind)
	for _, op := range ops {
		kinds[op.Resource.Path] = op.Kind
	}
	return kinds
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		local  map[string]string
		remote map[string]string
		want   map[string]OpKind
	}{
		{
			name:   "identical sets yield only unchanged",
			local:  map[string]string{"/a.html": "aaa", "/b.css": "bbb", "/c.js": "ccc"},
			remote: map[string]string{"/a.html": "aaa", "/b.css": "bbb", "/c.js": "ccc"},
			want: map[string]OpKind{
				"/a.html": OpUnchanged,
				"/b.css":  OpUnchanged,
				"/c.js":   OpUnchanged,
			},
		},
		{
			name:   "one edited file among three",
			local:  map[string]string{"/a.html": "aaa", "/b.css": "bbb-edited", "/c.js": "ccc"},
			remote: map[string]string{"/a.html": "aaa", "/b.css": "bbb", "/c.js": "ccc"},
			want: map[string]OpKind{
				"/a.html": OpUnchanged,
				"/b.css":  OpCreated,
				"/c.js":   OpUnchanged,
			},
		},
		{
			name:   "new and removed paths",
			local:  map[string]string{"/new.txt": "n"},
			remote: map[string]string{"/old.txt": "o"},
			want: map[string]OpKind{
				"/new.txt": OpCreated,
				"/old.txt": OpDeleted,
			},
		},
		{
			name:   "empty local deletes everything",
			local:  map[string]string{},
			remote: map[string]string{"/a": "a", "/b": "b"},
			want: map[string]OpKind{
				"/a": OpDeleted,
				"/b": OpDeleted,
			},
		},
		{
			name:   "empty remote creates everything",
			local:  map[string]string{"/a": "a"},
			remote: map[string]string{},
			want: map[string]OpKind{
				"/a": OpCreated,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(makeSet(tt.local), makeSet(tt.remote))
			if !reflect.DeepEqual(kindsByPath(got), tt.want) {
				t.Errorf("Diff() kinds = %+v, want %+v", kindsByPath(got), tt.want)
			}
		})
	}
}

// Every path of either input appears in exactly one op.
func TestDiffCompleteness(t *testing.T) {
	local := makeSet(map[string]string{"/a": "1", "/b": "2", "/c": "3"})
	remote := makeSet(map[string]string{"/b": "2x", "/c": "3", "/d": "4"})

	ops := Diff(local, remote)

	seen := make(map[string]int)
	for _, op := range ops {
		seen[op.Resource.Path]++
	}

	union := map[string]bool{"/a": true, "/b": true, "/c": true, "/d": true}
	if len(seen) != len(union) {
		t.Fatalf("ops cover %d paths, want %d", len(seen), len(union))
	}
	for path := range union {
		if seen[path] != 1 {
			t.Errorf("path %s appears in %d ops, want 1", path, seen[path])
		}
	}
}

func TestDiffIdempotence(t *testing.T) {
	local := makeSet(map[string]string{"/a": "1", "/b": "2"})

	for _, op := range Diff(local, local) {
		if op.Kind != OpUnchanged {
			t.Errorf("diff(local, local) emitted %s for %s", op.Kind, op.Resource.Path)
		}
	}
}

func TestDiffDeterministic(t *testing.T) {
	local := makeSet(map[string]string{"/a": "1", "/b": "2", "/z": "3"})
	remote := makeSet(map[string]string{"/b": "2", "/m": "4"})

	first := Diff(local, remote)
	second := Diff(local, remote)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated diffs over the same inputs differ")
	}
}

func TestDiffRoutes(t *testing.T) {
	tests := []struct {
		name   string
		local  map[string]string
		remote map[string]string
		want   RouteDiff
	}{
		{
			name:   "equal maps unchanged",
			local:  map[string]string{"/": "/index.html"},
			remote: map[string]string{"/": "/index.html"},
			want:   RouteDiff{},
		},
		{
			name:   "differing value replaces wholesale",
			local:  map[string]string{"/": "/home.html"},
			remote: map[string]string{"/": "/index.html"},
			want:   RouteDiff{Changed: true, Routes: map[string]string{"/": "/home.html"}},
		},
		{
			name:   "both empty unchanged",
			local:  nil,
			remote: nil,
			want:   RouteDiff{},
		},
		{
			name:   "remote has extra route",
			local:  map[string]string{},
			remote: map[string]string{"/old": "/x"},
			want:   RouteDiff{Changed: true, Routes: map[string]string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffRoutes(tt.local, tt.remote)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DiffRoutes() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDiffMetadata(t *testing.T) {
	remote := &site.Metadata{Description: "old"}

	if d := DiffMetadata(nil, remote); d.Changed {
		t.Error("nil local metadata must not produce a change")
	}
	if d := DiffMetadata(&site.Metadata{Description: "old"}, remote); d.Changed {
		t.Error("equal metadata must not produce a change")
	}

	updated := &site.Metadata{Description: "new"}
	d := DiffMetadata(updated, remote)
	if !d.Changed || d.Metadata != updated {
		t.Errorf("DiffMetadata() = %+v, want replace with new metadata", d)
	}
}

func TestDiffName(t *testing.T) {
	if d := DiffName("", "current"); d.Changed {
		t.Error("empty local name must keep the remote name")
	}
	if d := DiffName("current", "current"); d.Changed {
		t.Error("equal names must not produce a change")
	}
	if d := DiffName("renamed", "current"); !d.Changed || d.Name != "renamed" {
		t.Errorf("DiffName() = %+v, want update to renamed", d)
	}
}
