package referrers

import "strings"

// Kind buckets a referrer hostname reported by the tracking provider into a
// coarse traffic category. Daily click breakdowns are keyed by Kind so that
// cached metrics stay stable as individual hostnames come and go.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindSearch    Kind = "search"
	KindSocial    Kind = "social"
	KindCommunity Kind = "community"
	KindNews      Kind = "news"
	KindEmail     Kind = "email"
	KindShortener Kind = "shortener"
	KindOther     Kind = "other"
)

// Known referrer hostnames mapped to their traffic kind
var knownReferrers = map[string]Kind{
	// Search engines
	"google.com":     KindSearch,
	"google.co.uk":   KindSearch,
	"google.de":      KindSearch,
	"google.fr":      KindSearch,
	"google.es":      KindSearch,
	"google.it":      KindSearch,
	"google.com.br":  KindSearch,
	"bing.com":       KindSearch,
	"duckduckgo.com": KindSearch,
	"yahoo.com":      KindSearch,
	"baidu.com":      KindSearch,
	"yandex.ru":      KindSearch,
	"ecosia.org":     KindSearch,

	// Social media
	"x.com":           KindSocial,
	"twitter.com":     KindSocial,
	"t.co":            KindSocial,
	"facebook.com":    KindSocial,
	"fb.com":          KindSocial,
	"l.facebook.com":  KindSocial,
	"lm.facebook.com": KindSocial,
	"instagram.com":   KindSocial,
	"l.instagram.com": KindSocial,
	"linkedin.com":    KindSocial,
	"lnkd.in":         KindSocial,
	"tiktok.com":      KindSocial,
	"pinterest.com":   KindSocial,
	"threads.net":     KindSocial,
	"bsky.app":        KindSocial,
	"mastodon.social": KindSocial,
	"youtube.com":     KindSocial,
	"youtu.be":        KindSocial,
	"whatsapp.com":    KindSocial,
	"telegram.org":    KindSocial,
	"t.me":            KindSocial,

	// Communities
	"reddit.com":           KindCommunity,
	"old.reddit.com":       KindCommunity,
	"news.ycombinator.com": KindCommunity,
	"hn.algolia.com":       KindCommunity,
	"lobste.rs":            KindCommunity,
	"producthunt.com":      KindCommunity,
	"indiehackers.com":     KindCommunity,
	"dev.to":               KindCommunity,
	"medium.com":           KindCommunity,
	"substack.com":         KindCommunity,
	"github.com":           KindCommunity,
	"stackoverflow.com":    KindCommunity,
	"quora.com":            KindCommunity,
	"discord.com":          KindCommunity,
	"discordapp.com":       KindCommunity,
	"slack.com":            KindCommunity,

	// News
	"nytimes.com":        KindNews,
	"washingtonpost.com": KindNews,
	"theguardian.com":    KindNews,
	"bbc.com":            KindNews,
	"bbc.co.uk":          KindNews,
	"cnn.com":            KindNews,
	"reuters.com":        KindNews,
	"bloomberg.com":      KindNews,
	"forbes.com":         KindNews,
	"techcrunch.com":     KindNews,
	"theverge.com":       KindNews,

	// Email providers (newsletter clicks)
	"mail.google.com":    KindEmail,
	"outlook.live.com":   KindEmail,
	"outlook.office.com": KindEmail,
	"mail.yahoo.com":     KindEmail,
	"protonmail.com":     KindEmail,
	"mail.proton.me":     KindEmail,

	// Link shorteners
	"bit.ly":      KindShortener,
	"tinyurl.com": KindShortener,
	"goo.gl":      KindShortener,
	"ow.ly":       KindShortener,
}

// Classify maps a referrer hostname to its traffic kind. An empty hostname is
// direct traffic; unknown hostnames fall into KindOther.
func Classify(hostname string) Kind {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return KindDirect
	}

	if kind, ok := knownReferrers[hostname]; ok {
		return kind
	}

	// Try without www. prefix
	if strings.HasPrefix(hostname, "www.") {
		hostname = hostname[4:]
		if kind, ok := knownReferrers[hostname]; ok {
			return kind
		}
	}

	// Check if it's a subdomain of a known referrer
	for domain, kind := range knownReferrers {
		if strings.HasSuffix(hostname, "."+domain) {
			return kind
		}
	}

	return KindOther
}

// Kinds returns all referrer kinds in display order.
func Kinds() []Kind {
	return []Kind{
		KindDirect,
		KindSearch,
		KindSocial,
		KindCommunity,
		KindNews,
		KindEmail,
		KindShortener,
		KindOther,
	}
}
