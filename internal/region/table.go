package region

// Profile lists the names and keywords that tie an article to a region.
type Profile struct {
	Code     string
	Names    []string
	Keywords []string
}

// DefaultProfiles is the built-in region table.
var DefaultProfiles = []Profile{
	{
		Code:     "US",
		Names:    []string{"united states", "u.s.", "usa", "america", "american", "washington"},
		Keywords: []string{"silicon valley", "san francisco", "new york", "openai", "google", "microsoft", "apple", "nvidia", "meta", "amazon", "tesla", "anthropic", "federal reserve", "congress", "white house"},
	},
	{
		Code:     "GB",
		Names:    []string{"united kingdom", "uk", "britain", "british", "england", "london"},
		Keywords: []string{"deepmind", "arm holdings", "bbc", "ofcom", "bank of england", "downing street", "nhs"},
	},
	{
		Code:     "CA",
		Names:    []string{"canada", "canadian", "toronto", "montreal", "vancouver", "ottawa"},
		Keywords: []string{"shopify", "cohere", "mila", "vector institute", "bank of canada"},
	},
	{
		Code:     "AU",
		Names:    []string{"australia", "australian", "sydney", "melbourne", "canberra"},
		Keywords: []string{"atlassian", "canva", "csiro", "reserve bank of australia"},
	},
	{
		Code:     "IN",
		Names:    []string{"india", "indian", "bangalore", "bengaluru", "mumbai", "delhi", "hyderabad"},
		Keywords: []string{"infosys", "tata", "wipro", "reliance", "flipkart", "isro", "reserve bank of india"},
	},
	{
		Code:     "DE",
		Names:    []string{"germany", "german", "berlin", "munich", "frankfurt"},
		Keywords: []string{"sap", "siemens", "aleph alpha", "volkswagen", "bosch", "bundesbank"},
	},
	{
		Code:     "FR",
		Names:    []string{"france", "french", "paris"},
		Keywords: []string{"mistral", "hugging face", "dassault", "thales", "elysee"},
	},
	{
		Code:     "JP",
		Names:    []string{"japan", "japanese", "tokyo", "osaka"},
		Keywords: []string{"sony", "softbank", "toyota", "nintendo", "preferred networks", "bank of japan"},
	},
	{
		Code:     "CN",
		Names:    []string{"china", "chinese", "beijing", "shanghai", "shenzhen"},
		Keywords: []string{"baidu", "alibaba", "tencent", "huawei", "deepseek", "bytedance", "xiaomi"},
	},
	{
		Code:     "KR",
		Names:    []string{"south korea", "korea", "korean", "seoul"},
		Keywords: []string{"samsung", "sk hynix", "naver", "kakao", "lg electronics"},
	},
	{
		Code:     "SG",
		Names:    []string{"singapore", "singaporean"},
		Keywords: []string{"grab", "sea limited", "temasek", "gic", "monetary authority of singapore"},
	},
	{
		Code:     "BR",
		Names:    []string{"brazil", "brazilian", "sao paulo", "rio de janeiro", "brasilia"},
		Keywords: []string{"petrobras", "nubank", "embraer", "mercado livre"},
	},
}

// techTerms earn a flat boost regardless of region.
var techTerms = []string{
	"ai", "artificial intelligence", "machine learning", "deep learning", "llm",
	"large language model", "generative", "chatbot", "neural network", "gpu",
	"semiconductor", "chip", "robotics", "automation", "startup", "software",
	"cloud", "data center", "cybersecurity", "quantum computing",
}
