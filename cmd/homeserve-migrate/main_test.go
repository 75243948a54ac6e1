package main

import "testing"

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/hs?sslmode=disable": "pgx5://u:p@localhost:5432/hs?sslmode=disable",
		"postgresql://localhost/hs":                        "pgx5://localhost/hs",
		"pgx5://localhost/hs":                              "pgx5://localhost/hs",
	}
	for in, want := range cases {
		if got := migrateURL(in); got != want {
			t.Fatalf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}
