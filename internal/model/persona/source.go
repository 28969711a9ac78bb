package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Source yields persona records from an external store.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Record, error)
}

// SupabaseSource reads the agents table through the PostgREST endpoint.
type SupabaseSource struct {
	baseURL string
	apiKey  string
	table   string
	client  *http.Client
}

// NewSupabaseSource builds a source for the given project URL and key.
func NewSupabaseSource(baseURL, apiKey string) *SupabaseSource {
	return &SupabaseSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		table:   "agents",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SupabaseSource) Name() string { return "supabase" }

func (s *SupabaseSource) Fetch(ctx context.Context) ([]Record, error) {
	url := fmt.Sprintf("%s/rest/v1/%s?select=*", s.baseURL, s.table)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("query %s: status %d: %s", s.table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.table, err)
	}
	return records, nil
}

// FileSource reads personas from a YAML or TOML document with a top-level
// "agents" list.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

type fileDocument struct {
	Agents []Record `yaml:"agents" toml:"agents"`
}

func (s *FileSource) Fetch(_ context.Context) ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var doc fileDocument
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported persona file extension %q", filepath.Ext(s.path))
	}
	return doc.Agents, nil
}

// StaticSource returns a fixed record list; Err, when set, is returned instead.
type StaticSource struct {
	Records []Record
	Err     error
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Fetch(_ context.Context) ([]Record, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]Record(nil), s.Records...), nil
}
