package location

import "testing"

func TestSameLocality(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Pune", "pune", true},
		{"  Pune ", "PUNE", true},
		{"Pune", "Mumbai", false},
		{"", "", false},
		{"Pune", "", false},
	}
	for _, tc := range cases {
		if got := SameLocality(tc.a, tc.b); got != tc.want {
			t.Errorf("SameLocality(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

type measured struct {
	id     string
	meters int
	ok     bool
}

func TestSortByDistance(t *testing.T) {
	items := []measured{
		{id: "c", meters: 5000, ok: true},
		{id: "loc1"},
		{id: "a", meters: 1000, ok: true},
		{id: "loc2"},
		{id: "b", meters: 3000, ok: true},
	}

	SortByDistance(items, func(m measured) (int, bool) { return m.meters, m.ok })

	want := []string{"a", "b", "c", "loc1", "loc2"}
	for i, id := range want {
		if items[i].id != id {
			t.Fatalf("position %d: got %s, want %s (%v)", i, items[i].id, id, items)
		}
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []measured
	SortByDistance(items, func(m measured) (int, bool) { return m.meters, m.ok })
}
