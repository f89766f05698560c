package youtube

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AlexGustafsson/metube/internal/buffer"
	"github.com/AlexGustafsson/metube/internal/extract"
)

var (
	ErrEmptyResponse   = errors.New("empty response")
	ErrJSONParseFailed = errors.New("json parse failed")
)

const (
	initialDataAnchor       = "var ytInitialData = "
	continuationItemsAnchor = `"continuationItems"`
)

// Page is a single page of search results.
type Page struct {
	Results []Result
	// Continuation is the token identifying the next page, if any.
	Continuation string
	// Dropped is the number of items that did not yield a valid result,
	// such as filtered shorts and unsupported renderers.
	Dropped int
}

type section struct {
	ItemSectionRenderer *struct {
		Contents []Item `json:"contents"`
	} `json:"itemSectionRenderer"`
	ContinuationItemRenderer *struct {
		ContinuationEndpoint struct {
			ContinuationCommand struct {
				Token string `json:"token"`
			} `json:"continuationCommand"`
		} `json:"continuationEndpoint"`
	} `json:"continuationItemRenderer"`
}

type initialData struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []section `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// ParseInitialPage parses the results embedded in a search results HTML
// page. The buffer is narrowed in place to the embedded JSON document.
func ParseInitialPage(buf *buffer.Buffer, allowShorts bool) (*Page, error) {
	if !buf.Ready() {
		return nil, ErrEmptyResponse
	}

	if err := extract.Span(buf, initialDataAnchor, '{', '}'); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONParseFailed, err)
	}

	var data initialData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONParseFailed, err)
	}

	return parseSections(data.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents, allowShorts), nil
}

// ParseContinuationPage parses the results of a continuation request. The
// buffer is narrowed in place to the continuation items array.
func ParseContinuationPage(buf *buffer.Buffer, allowShorts bool) (*Page, error) {
	if !buf.Ready() {
		return nil, ErrEmptyResponse
	}

	if err := extract.Span(buf, continuationItemsAnchor, '[', ']'); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONParseFailed, err)
	}

	var sections []section
	if err := json.Unmarshal(buf.Bytes(), &sections); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONParseFailed, err)
	}

	return parseSections(sections, allowShorts), nil
}

func parseSections(sections []section, allowShorts bool) *Page {
	page := &Page{
		Results: make([]Result, 0),
	}

	for _, section := range sections {
		if section.ItemSectionRenderer != nil {
			for _, item := range section.ItemSectionRenderer.Contents {
				result := ParseItem(item, allowShorts)
				if !result.Valid() {
					page.Dropped++
					continue
				}
				page.Results = append(page.Results, result)
			}
		}

		if section.ContinuationItemRenderer != nil {
			token := section.ContinuationItemRenderer.ContinuationEndpoint.ContinuationCommand.Token
			if token != "" {
				page.Continuation = token
			}
		}
	}

	return page
}
