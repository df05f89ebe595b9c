package matcher

import (
	"strings"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

type categoryKeywords struct {
	category domain.Category
	keywords []string
}

// categoryTable is checked in order; the first category with a substring
// hit wins.
var categoryTable = []categoryKeywords{
	{domain.CategoryPolitics, []string{
		"trump", "biden", "election", "president", "congress", "senate", "democrat", "republican",
		"governor", "vote", "poll", "cabinet", "impeach", "politician", "party", "gop",
		"white house", "supreme court", "legislation",
	}},
	{domain.CategorySports, []string{
		"nfl", "nba", "mlb", "nhl", "super bowl", "world series", "championship", "playoff", "mvp",
		"quarterback", "lebron", "football", "basketball", "baseball", "hockey", "soccer", "ufc",
		"boxing", "tennis", "golf", "olympics", "world cup", "fifa", "espn", "coach", "team", "player",
	}},
	{domain.CategoryCrypto, []string{
		"bitcoin", "btc", "ethereum", "eth", "crypto", "solana", "sol", "dogecoin", "doge", "altcoin",
		"defi", "nft", "blockchain", "binance", "coinbase", "token", "mining", "halving", "satoshi", "web3",
	}},
	{domain.CategoryEconomics, []string{
		"stock", "market", "fed", "interest rate", "inflation", "gdp", "economy", "recession", "nasdaq",
		"s&p", "dow", "treasury", "bond", "ipo", "earnings", "revenue", "profit", "bank",
		"wall street", "investor", "trading",
	}},
	{domain.CategoryEntertainment, []string{
		"movie", "film", "oscar", "grammy", "emmy", "netflix", "disney", "spotify", "youtube", "tiktok",
		"celebrity", "actor", "actress", "singer", "album", "concert", "taylor swift", "kardashian",
		"kanye", "box office", "streaming",
	}},
	{domain.CategoryTechnology, []string{
		"apple", "google", "microsoft", "amazon", "meta", "facebook", "twitter", "x.com", "elon", "musk",
		"tesla", "spacex", "ai", "artificial intelligence", "openai", "chatgpt", "iphone", "android",
		"software", "startup", "silicon valley",
	}},
}

// Categorize returns the first category whose keyword list has a substring
// hit in the lowercased title, or domain.CategoryOther.
func Categorize(title string) domain.Category {
	t := strings.ToLower(title)
	for _, entry := range categoryTable {
		for _, kw := range entry.keywords {
			if strings.Contains(t, kw) {
				return entry.category
			}
		}
	}
	return domain.CategoryOther
}

// Categories lists the closed category set in detection order, followed by
// domain.CategoryOther.
func Categories() []domain.Category {
	out := make([]domain.Category, 0, len(categoryTable)+1)
	for _, entry := range categoryTable {
		out = append(out, entry.category)
	}
	return append(out, domain.CategoryOther)
}
