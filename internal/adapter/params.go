package adapter

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	guardianParamsSchema = "guardian_params.schema.json"
	scraperParamsSchema  = "scraper_params.schema.json"
)

// GuardianParams are the per-feed knobs stored in feeds.params for api feeds.
type GuardianParams struct {
	Query      string   `json:"q,omitempty"`
	Tag        string   `json:"tag,omitempty"`
	FromDate   string   `json:"from_date,omitempty"`
	ToDate     string   `json:"to_date,omitempty"`
	PageSize   int      `json:"page_size,omitempty"`
	MaxPages   int      `json:"max_pages,omitempty"`
	ShowFields []string `json:"show_fields,omitempty"`
}

// ScraperParams select listing entries on a scraped index page.
type ScraperParams struct {
	ItemSelector    string `json:"item_selector"`
	LinkSelector    string `json:"link_selector,omitempty"`
	TitleSelector   string `json:"title_selector,omitempty"`
	SummarySelector string `json:"summary_selector,omitempty"`
	MaxItems        int    `json:"max_items,omitempty"`
}

var (
	schemaMu       sync.Mutex
	compiledSchema = map[string]*jsonschema.Schema{}
)

// DecodeGuardianParams validates raw feed params and decodes them.
func DecodeGuardianParams(raw json.RawMessage) (GuardianParams, error) {
	var params GuardianParams
	if err := decodeParams(guardianParamsSchema, raw, &params); err != nil {
		return GuardianParams{}, err
	}
	return params, nil
}

// DecodeScraperParams validates raw feed params and decodes them.
func DecodeScraperParams(raw json.RawMessage) (ScraperParams, error) {
	var params ScraperParams
	if err := decodeParams(scraperParamsSchema, raw, &params); err != nil {
		return ScraperParams{}, err
	}
	return params, nil
}

func decodeParams(schemaName string, raw json.RawMessage, into any) error {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return fmt.Errorf("decode params JSON: %w", err)
	}

	schema, err := loadSchema(schemaName)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("params validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("normalize params JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, into); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}
	return nil
}

func loadSchema(name string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if schema, ok := compiledSchema[name]; ok {
		return schema, nil
	}

	body, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(name, bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	compiledSchema[name] = schema
	return schema, nil
}

// decodeStrictJSON treats blank params as an empty object.
func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("params contain trailing content")
	}
	return value, nil
}
