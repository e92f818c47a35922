package types

// Topic is a named, context-independent unit of knowledge.
type Topic struct {
	Name        string `json:"name"`
	Information string `json:"topic_information"`
}

// SearchResponse is the structured reply of the search model.
type SearchResponse struct {
	Thoughts string `json:"thoughts"`
	Answer   string `json:"answer"`
}
