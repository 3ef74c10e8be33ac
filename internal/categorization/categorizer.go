package categorization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"meridian/internal/core"
)

var (
	errNotArray      = errors.New("response is not a JSON array")
	errEmptyArray    = errors.New("category array is empty")
	errNoValidValues = errors.New("no valid categories in response")
)

// Completer is the chat capability the categorizer needs
type Completer interface {
	ChatComplete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// PromptBuilder renders the classification prompt
type PromptBuilder interface {
	CategoryPrompt(title, content string) string
}

// Result is the outcome of categorizing one article.
type Result struct {
	Categories []core.Category
	Fallback   bool   // true when Categories is the single fallback tag
	Reason     string // why the fallback was used
}

// Categorizer assigns categories to processed articles using the chat model
type Categorizer struct {
	llm      Completer
	prompts  PromptBuilder
	maxChars int
	log      zerolog.Logger
}

// NewCategorizer creates a new article categorizer
func NewCategorizer(llm Completer, prompts PromptBuilder, maxChars int, log zerolog.Logger) *Categorizer {
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &Categorizer{llm: llm, prompts: prompts, maxChars: maxChars, log: log}
}

// Categorize classifies an article from its title and processed text. It always
// returns at least one category: any failure resolves to the fallback tag so
// the article leaves the categorization queue.
func (c *Categorizer) Categorize(ctx context.Context, article core.Article) Result {
	prompt := c.prompts.CategoryPrompt(article.Title, core.Truncate(article.Processed(), c.maxChars))

	response, err := c.llm.ChatComplete(ctx, prompt, "")
	if err != nil {
		c.log.Warn().Err(err).Int64("article_id", article.ID).Msg("No category response received")
		return fallback(fmt.Sprintf("no category response: %v", err))
	}

	categories, err := parse(response)
	if err != nil {
		c.log.Warn().Err(err).Int64("article_id", article.ID).Str("response", response).Msg("Could not parse category response")
		return fallback(err.Error())
	}
	return Result{Categories: categories}
}

func fallback(reason string) Result {
	return Result{
		Categories: []core.Category{core.CategoryOther},
		Fallback:   true,
		Reason:     reason,
	}
}

// ParseCategories interprets a model response as a JSON array of category
// names. Unknown entries are dropped. When nothing valid survives, the result
// is the single fallback category.
func ParseCategories(response string) []core.Category {
	categories, err := parse(response)
	if err != nil {
		return []core.Category{core.CategoryOther}
	}
	return categories
}

func parse(response string) ([]core.Category, error) {
	var raw []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotArray, err)
	}
	if len(raw) == 0 {
		return nil, errEmptyArray
	}

	valid := make([]core.Category, 0, len(raw))
	for _, entry := range raw {
		name, ok := entry.(string)
		if !ok || !IsValid(name) {
			continue
		}
		valid = append(valid, core.Category(name))
	}
	if len(valid) == 0 {
		return nil, errNoValidValues
	}
	return valid, nil
}
