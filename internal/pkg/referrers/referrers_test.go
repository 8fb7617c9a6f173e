package referrers

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		hostname string
		expected Kind
	}{
		// Known referrers
		{"google.com", KindSearch},
		{"news.ycombinator.com", KindCommunity},
		{"x.com", KindSocial},
		{"twitter.com", KindSocial},
		{"reddit.com", KindCommunity},
		{"linkedin.com", KindSocial},
		{"bit.ly", KindShortener},
		{"mail.google.com", KindEmail},
		{"bbc.co.uk", KindNews},

		// With www prefix
		{"www.google.com", KindSearch},
		{"www.reddit.com", KindCommunity},

		// Subdomains of known referrers
		{"m.facebook.com", KindSocial},
		{"mobile.twitter.com", KindSocial},

		// Direct traffic
		{"", KindDirect},
		{"   ", KindDirect},

		// Unknown referrers
		{"example.com", KindOther},
		{"myblog.io", KindOther},

		// Case insensitive
		{"GOOGLE.COM", KindSearch},
		{"News.Ycombinator.Com", KindCommunity},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			got := Classify(tt.hostname)
			if got != tt.expected {
				t.Errorf("Classify(%q) = %q, want %q", tt.hostname, got, tt.expected)
			}
		})
	}
}

func TestKindsContainsAllBuckets(t *testing.T) {
	kinds := Kinds()
	seen := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			t.Errorf("duplicate kind %q", k)
		}
		seen[k] = true
	}
	for _, k := range knownReferrers {
		if !seen[k] {
			t.Errorf("kind %q used in knownReferrers but missing from Kinds()", k)
		}
	}
}
