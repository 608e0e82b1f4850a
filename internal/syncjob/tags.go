package syncjob

// cacheTagPrefixes are the read views derived from a team's bank data.
var cacheTagPrefixes = []string{
	"bank_connections_",
	"transactions_",
	"spending_",
	"metrics_",
	"bank_accounts_",
	"insights_",
	"expenses_",
}

// CacheTags returns the cache tags to invalidate after syncing a team.
func CacheTags(teamID string) []string {
	tags := make([]string, len(cacheTagPrefixes))
	for i, p := range cacheTagPrefixes {
		tags[i] = p + teamID
	}
	return tags
}
