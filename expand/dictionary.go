package expand

// defaultStopwords is the built-in stop list applied before synonym lookup.
var defaultStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "will": {}, "with": {},
}

// defaultSynonyms seeds the synonym dictionary. Callers extend or override it
// through config; keys and values are lowercase terms.
var defaultSynonyms = map[string][]string{
	"auth":           {"authentication", "authorization", "login"},
	"authentication": {"auth", "login", "signin"},
	"bug":            {"defect", "error", "issue"},
	"config":         {"configuration", "settings"},
	"configuration":  {"config", "settings", "setup"},
	"db":             {"database", "datastore"},
	"database":       {"db", "datastore", "storage"},
	"delete":         {"remove", "drop", "erase"},
	"doc":            {"document", "documentation"},
	"error":          {"failure", "fault", "exception"},
	"fast":           {"quick", "rapid", "speedy"},
	"find":           {"search", "locate", "lookup"},
	"fix":            {"repair", "resolve", "patch"},
	"guide":          {"tutorial", "manual", "howto"},
	"install":        {"setup", "deploy"},
	"permission":     {"access", "privilege", "grant"},
	"query":          {"search", "request", "lookup"},
	"search":         {"find", "query", "lookup"},
	"secret":         {"credential", "key", "token"},
	"server":         {"host", "backend", "service"},
	"token":          {"credential", "ticket"},
	"update":         {"modify", "change", "upgrade"},
	"user":           {"account", "member", "person"},
	"verify":         {"validate", "check", "confirm"},
}
