package openlibrary

import (
	"encoding/json"
)

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    *int     `json:"first_publish_year"`
	NumberOfPagesMedian *int     `json:"number_of_pages_median"`
	Subject             []string `json:"subject"`
	CoverI              int      `json:"cover_i"`
}

// record is the shared shape of /works/{id}.json and /books/{id}.json.
type record struct {
	Title            string      `json:"title"`
	Subtitle         string      `json:"subtitle,omitempty"`
	Authors          []authorRef `json:"authors,omitempty"`
	Description      textValue   `json:"description,omitempty"`
	Subjects         []string    `json:"subjects,omitempty"`
	Covers           []int       `json:"covers,omitempty"`
	FirstPublishDate string      `json:"first_publish_date,omitempty"`

	// Edition only
	ISBN10         []string `json:"isbn_10,omitempty"`
	ISBN13         []string `json:"isbn_13,omitempty"`
	PublishDate    string   `json:"publish_date,omitempty"`
	Publishers     []string `json:"publishers,omitempty"`
	NumberOfPages  int      `json:"number_of_pages,omitempty"`
	PhysicalFormat string   `json:"physical_format,omitempty"`
	Languages      []keyRef `json:"languages,omitempty"`
	Works          []keyRef `json:"works,omitempty"`
}

type keyRef struct {
	Key string `json:"key"`
}

// authorRef is {"author":{"key":...}} in works and {"key":...} in editions.
type authorRef struct {
	Author *keyRef `json:"author,omitempty"`
	Key    string  `json:"key,omitempty"`
}

func (r authorRef) key() string {
	if r.Author != nil && r.Author.Key != "" {
		return lastSegment(r.Author.Key)
	}
	if r.Key != "" {
		return lastSegment(r.Key)
	}
	return ""
}

type author struct {
	Name         string `json:"name"`
	PersonalName string `json:"personal_name"`
}

// textValue accepts either a plain string or {"type": ..., "value": ...}.
type textValue string

func (t *textValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = textValue(s)
		return nil
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		// Unknown shapes degrade to an empty description.
		*t = ""
		return nil
	}
	*t = textValue(typed.Value)
	return nil
}

// cachedRecord is the response cache payload; NotFound entries use the negative TTL.
type cachedRecord struct {
	Record   *record `json:"record,omitempty"`
	NotFound bool    `json:"notFound"`
}
