package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tracker params host and port",
			in:   "http://Example.com:80/path?utm_source=x&b=2&a=1",
			want: "http://example.com/path?a=1&b=2",
		},
		{
			name: "https default port and fragment",
			in:   "https://News.Example.org:443/story/#comments",
			want: "https://news.example.org/story",
		},
		{
			name: "non-default port kept",
			in:   "https://example.com:8443/a",
			want: "https://example.com:8443/a",
		},
		{
			name: "named trackers removed",
			in:   "https://example.com/a?fbclid=1&gclid=2&ref=home&ref_src=tw&id=7&UTM_Medium=email",
			want: "https://example.com/a?id=7",
		},
		{
			name: "root path keeps slash",
			in:   "https://example.com/",
			want: "https://example.com/",
		},
		{
			name: "only trackers drop the query",
			in:   "https://example.com/a/?utm_campaign=spring",
			want: "https://example.com/a",
		},
		{
			name: "malformed passes through",
			in:   "not a url",
			want: "not a url",
		},
		{
			name: "bad escape passes through",
			in:   "http://exa mple.com/%zz",
			want: "http://exa mple.com/%zz",
		},
		{
			name: "bad query escape keeps query but folds host and fragment",
			in:   "http://Example.com:80/a/?x=%zz#frag",
			want: "http://example.com/a?x=%zz",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"http://Example.com:80/path?utm_source=x&b=2&a=1",
		"http://Example.com/a?x=%zz#frag",
		"https://www.bbc.co.uk/news/world-123/?at_medium=RSS&at_campaign=KARANGA#top",
		"https://example.com/search?q=hello+world&q=again&lang=en",
		"https://[2001:DB8::1]:443/x/",
		"https://example.com/a%2Fb/",
		"mailto:someone@example.com",
		"::::",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestHost(t *testing.T) {
	t.Parallel()

	if got := Host("https://WWW.TheGuardian.com/world/x"); got != "theguardian.com" {
		t.Fatalf("Host() = %q, want theguardian.com", got)
	}
	if got := Host("::"); got != "" {
		t.Fatalf("Host() of invalid = %q, want empty", got)
	}
}
