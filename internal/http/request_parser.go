// This file parses form and JSON request bodies into gateway inputs.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"lifehub/internal/core"
)

const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser reads a form-encoded or JSON body once and serves its fields.
// Plain forms and htmx send form data; scripted clients may send JSON.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var maxErr *http.MaxBytesError
	if errors.As(p.err, &maxErr) {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the first non-empty of the given keys, trimmed and stripped of
// control characters.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(sanitizeInput(p.GetRaw(key))); v != "" {
			return v
		}
	}
	return ""
}

// GetRaw returns the value exactly as sent.
func (p *RequestBodyParser) GetRaw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Inputs for the mutation handlers. Field names follow the page forms; the
// short aliases are accepted from JSON clients.

type expenseInput struct {
	Name     string
	Amount   core.Money
	Category core.Category
}

func parseExpenseInput(p *RequestBodyParser) (expenseInput, error) {
	const op = "add expense"
	name := p.Get("description", "name")
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return expenseInput{}, core.E(core.KindValidationFailed, op, err)
	}
	category, err := core.ParseCategory(p.Get("category"))
	if err != nil {
		return expenseInput{}, core.E(core.KindValidationFailed, op, err)
	}
	return expenseInput{Name: name, Amount: amount, Category: category}, nil
}

func parseIncomeInput(p *RequestBodyParser) (core.Money, error) {
	income, err := core.ParseIncome(p.Get("income"))
	if err != nil {
		return core.Money{}, core.E(core.KindValidationFailed, "update income", err)
	}
	return income, nil
}

type bookInput struct {
	Title  string
	Author string
}

func parseBookInput(p *RequestBodyParser) bookInput {
	return bookInput{
		Title:  p.Get("bookTitle", "title"),
		Author: p.Get("bookAuthor", "author"),
	}
}

func parseChapterTitle(p *RequestBodyParser) string {
	return p.Get("chapterTitle", "title")
}

type keywordInput struct {
	Word       string
	Definition string
}

func parseKeywordInput(p *RequestBodyParser) keywordInput {
	return keywordInput{
		Word:       p.Get("keyword", "word"),
		Definition: p.Get("definition"),
	}
}

// parseChapterContent keeps the editor's HTML verbatim.
func parseChapterContent(p *RequestBodyParser) string {
	return p.GetRaw("content")
}
