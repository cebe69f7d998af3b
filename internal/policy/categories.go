package policy

// stopwords are dropped during keyword extraction. The modal and negation
// scaffolding ("must", "not", "never") is noise for topic matching.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "this": {}, "with": {}, "from": {},
	"about": {}, "into": {}, "onto": {}, "your": {}, "their": {}, "any": {},
	"must": {}, "not": {}, "never": {}, "should": {}, "shall": {},
	"cannot": {}, "cant": {}, "can't": {}, "always": {}, "only": {},
	"when": {}, "where": {}, "what": {}, "who": {}, "whom": {}, "how": {},
	"why": {}, "for": {}, "are": {}, "you": {}, "they": {}, "our": {},
	"please": {}, "assistant": {}, "user": {}, "users": {}, "user's": {},
	"will": {}, "allowed": {}, "prohibited": {},
	// Generic request verbs carry no topic; keeping them would make the
	// predicate atoms describe the verb instead of the subject matter.
	"describe": {}, "reveal": {}, "provide": {}, "share": {}, "discuss": {},
	"explain": {}, "generate": {}, "create": {}, "give": {}, "offer": {},
	"include": {}, "write": {}, "tell": {}, "assist": {}, "help": {},
	"promote": {},
}

// categoryMarkers maps a category to the substrings that select it.
// First match in table order wins, so order is part of the contract.
var categoryMarkers = []struct {
	category string
	markers  []string
}{
	{CategorySafety, []string{"suicide", "self harm", "self-harm", "hurt myself", "kill myself", "dangerous activity"}},
	{CategoryViolence, []string{"violence", "weapon", "bomb", "explosive", "attack", "fight"}},
	{CategoryPrivacy, []string{"personal data", "personal information", "pii", "address", "phone", "ssn", "social security", "third parties", "third party"}},
	{CategoryMedical, []string{"medical", "diagnosis", "drug", "medicine", "prescription"}},
	{CategoryFinancial, []string{"money", "credit", "loan", "gambling", "investment", "fraud"}},
	{CategoryCopyright, []string{"copyright", "plagiarize", "plagiarism", "piracy"}},
	{CategoryLegal, []string{"illegal", "unlawful", "law enforcement", "criminal", "contraband"}},
	{CategoryPolitical, []string{"election", "political", "campaign", "propaganda"}},
}

// maxKeywords caps the per-rule keyword set; the leading keywords carry
// the topic and everything past six is usually scaffolding.
const maxKeywords = 6
