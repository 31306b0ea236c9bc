package app

import (
	"flag"
	"io"
	"reflect"
	"testing"
)

func TestRunUsageExitCodes(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no args", nil, 2},
		{"help", []string{"help"}, 0},
		{"unknown", []string{"frobnicate"}, 2},
		{"feeds without sub", []string{"feeds"}, 2},
		{"feeds unknown sub", []string{"feeds", "purge"}, 2},
		{"watch without sub", []string{"watch"}, 2},
		{"run help", []string{"run", "-h"}, 0},
		{"run bad flag", []string{"run", "--bogus"}, 2},
		{"run negative concurrency", []string{"run", "--concurrency", "-1"}, 2},
		{"hydrate bad id", []string{"hydrate", "--source-id", "abc"}, 2},
		{"watch create missing subject", []string{"watch", "create", "--query", "x"}, 2},
		{"watch create bad type", []string{"watch", "create", "--subject", "X", "--type", "planet"}, 2},
		{"watch update missing uuid", []string{"watch", "update"}, 2},
		{"watch update conflicting flags", []string{"watch", "update", "--watch-uuid", "u", "--enable", "--disable"}, 2},
		{"serve bad port", []string{"serve", "--port", "0"}, 2},
	}

	for _, tc := range cases {
		if got := Run(tc.args); got != tc.want {
			t.Fatalf("%s: Run(%v) = %d, want %d", tc.name, tc.args, got, tc.want)
		}
	}
}

func TestInt64ListFlag(t *testing.T) {
	t.Parallel()

	var ids int64List
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(&ids, "id", "")

	if err := fs.Parse([]string{"--id", "3", "--id", "11"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual([]int64(ids), []int64{3, 11}) {
		t.Fatalf("ids = %v", ids)
	}
	if err := fs.Parse([]string{"--id", "0"}); err == nil {
		t.Fatalf("expected error for non-positive id")
	}
}
