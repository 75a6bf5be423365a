package content

import (
	"fmt"
	"net/url"
	"strings"
)

// Section headers of a rendered summary document, in order.
const (
	SectionIntro        = "Intro"
	SectionBigIdea      = "Big Idea"
	SectionCoreSummary  = "Core Summary"
	SectionTakeaways    = "Key Takeaways"
	SectionApply        = "Apply This Now"
	SectionQuotes       = "Quotes"
	SectionPurchase     = "Purchase Link"
	SectionRelatedBooks = "Related Books"
	SectionAboutAuthor  = "About the Author"
)

// SectionHeaders lists every section header in document order.
var SectionHeaders = []string{
	SectionIntro,
	SectionBigIdea,
	SectionCoreSummary,
	SectionTakeaways,
	SectionApply,
	SectionQuotes,
	SectionPurchase,
	SectionRelatedBooks,
	SectionAboutAuthor,
}

const amazonSearchURL = "https://www.amazon.com/s"

// maxApplySteps caps how many takeaways are repeated as action items.
const maxApplySteps = 3

// Quote is a short passage attributed to a book or person.
type Quote struct {
	Text        string
	Attribution string
}

// RelatedBook is a reading suggestion shown after the summary.
type RelatedBook struct {
	Title  string
	Author string
}

// SummaryDetails contains the information needed to render a summary document body
type SummaryDetails struct {
	Title           string
	Authors         []string
	ShortSummary    string
	DetailedSummary string
	Takeaways       []string
	Quotes          []Quote
	Related         []RelatedBook
	PurchaseURL     string
	AboutAuthor     string
}

// BuildSummaryBody renders the Markdown body with all nine section headers.
// Every header is written even when its content is empty.
func BuildSummaryBody(details *SummaryDetails) string {
	if details == nil {
		details = &SummaryDetails{}
	}

	var builder strings.Builder
	writeSection := func(header, body string) {
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("## ")
		builder.WriteString(header)
		builder.WriteString("\n\n")
		if body = strings.TrimSpace(body); body != "" {
			builder.WriteString(body)
			builder.WriteString("\n")
		}
	}

	writeSection(SectionIntro, details.ShortSummary)
	writeSection(SectionBigIdea, bigIdea(details))
	writeSection(SectionCoreSummary, details.DetailedSummary)
	writeSection(SectionTakeaways, bulletList(details.Takeaways))
	writeSection(SectionApply, applySteps(details.Takeaways))
	writeSection(SectionQuotes, quoteBlock(details.Quotes))
	writeSection(SectionPurchase, purchaseLine(details))
	writeSection(SectionRelatedBooks, relatedList(details.Related))
	writeSection(SectionAboutAuthor, aboutAuthor(details))

	return builder.String()
}

// AmazonLink builds an affiliate search link for the book. An empty tag omits the parameter.
func AmazonLink(title string, authors []string, tag string) string {
	terms := strings.TrimSpace(title)
	if len(authors) > 0 {
		terms = strings.TrimSpace(terms + " " + strings.Join(authors, " "))
	}

	values := url.Values{}
	values.Set("k", terms)
	if tag != "" {
		values.Set("tag", tag)
	}
	return amazonSearchURL + "?" + values.Encode()
}

// bigIdea is the first paragraph of the detailed summary.
func bigIdea(details *SummaryDetails) string {
	detailed := strings.TrimSpace(details.DetailedSummary)
	if detailed == "" {
		return details.ShortSummary
	}
	first, _, _ := strings.Cut(detailed, "\n\n")
	return first
}

func bulletList(items []string) string {
	var builder strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		builder.WriteString("- ")
		builder.WriteString(item)
		builder.WriteString("\n")
	}
	return builder.String()
}

func applySteps(takeaways []string) string {
	var builder strings.Builder
	count := 0
	for _, item := range takeaways {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		count++
		fmt.Fprintf(&builder, "%d. %s\n", count, item)
		if count == maxApplySteps {
			break
		}
	}
	return builder.String()
}

func quoteBlock(quotes []Quote) string {
	var parts []string
	for _, q := range quotes {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		block := "> " + text
		if q.Attribution != "" {
			block += "\n>\n> — " + q.Attribution
		}
		parts = append(parts, block)
	}
	return strings.Join(parts, "\n\n")
}

func purchaseLine(details *SummaryDetails) string {
	if details.PurchaseURL == "" {
		return ""
	}
	return fmt.Sprintf("[Buy *%s* on Amazon](%s)", details.Title, details.PurchaseURL)
}

func relatedList(books []RelatedBook) string {
	var builder strings.Builder
	for _, b := range books {
		if b.Title == "" {
			continue
		}
		if b.Author != "" {
			fmt.Fprintf(&builder, "- *%s* by %s\n", b.Title, b.Author)
		} else {
			fmt.Fprintf(&builder, "- *%s*\n", b.Title)
		}
	}
	return builder.String()
}

func aboutAuthor(details *SummaryDetails) string {
	if details.AboutAuthor != "" {
		return details.AboutAuthor
	}
	if len(details.Authors) == 0 || details.Title == "" {
		return ""
	}
	return fmt.Sprintf("%s is the author of *%s*.", strings.Join(details.Authors, ", "), details.Title)
}
