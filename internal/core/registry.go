package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ImporterInfo describes a CSV importer for listings and templates.
type ImporterInfo struct {
	Key            string   `json:"key"`
	Label          string   `json:"label"`
	Description    string   `json:"description"`
	Columns        []string `json:"columns"`
	SampleFilename string   `json:"sampleFilename"`
	NeedsCohort    bool     `json:"needsCohort"`
}

// ImportRequest is the input shared by every importer.
type ImportRequest struct {
	CohortID          string `json:"cohortId"`
	CSV               string `json:"csv"`
	IncludeDuplicates bool   `json:"includeDuplicates"`
}

// ImporterDefinition binds an importer's columns and sample to the Service
// operations that preview and run it.
type ImporterDefinition struct {
	Info       ImporterInfo
	FieldSpecs []FieldSpec
	SampleCSV  string
	Preview    func(ctx context.Context, s *Service, req ImportRequest) (any, error)
	Start      func(ctx context.Context, s *Service, req ImportRequest) (string, error)
}

var (
	registry   = make(map[string]ImporterDefinition)
	registryMu sync.RWMutex
)

// Register adds an importer. It panics on a duplicate key.
func Register(def ImporterDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("importer already registered: %s", def.Info.Key))
	}

	if len(def.Info.Columns) == 0 && len(def.FieldSpecs) > 0 {
		def.Info.Columns = make([]string, len(def.FieldSpecs))
		for i, spec := range def.FieldSpecs {
			def.Info.Columns[i] = spec.Name
		}
	}

	registry[def.Info.Key] = def
}

// GetImporter returns an importer by key.
func GetImporter(key string) (ImporterDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Importers returns every registered importer sorted by key.
func Importers() []ImporterDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ImporterDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Info.Key < result[j].Info.Key })
	return result
}

// ImporterCount returns the number of registered importers.
func ImporterCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// ClearImporters removes every importer. Tests only.
func ClearImporters() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ImporterDefinition)
}

// ListImporters returns the info of every registered importer.
func (s *Service) ListImporters() []ImporterInfo {
	defs := Importers()
	infos := make([]ImporterInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// PreviewImport dispatches to the named importer's preview.
func (s *Service) PreviewImport(ctx context.Context, kind string, req ImportRequest) (any, error) {
	def, err := s.importer(kind, req)
	if err != nil {
		return nil, err
	}
	return def.Preview(ctx, s, req)
}

// StartImport dispatches to the named importer and returns the job id.
func (s *Service) StartImport(ctx context.Context, kind string, req ImportRequest) (string, error) {
	def, err := s.importer(kind, req)
	if err != nil {
		return "", err
	}
	return def.Start(ctx, s, req)
}

func (s *Service) importer(kind string, req ImportRequest) (ImporterDefinition, error) {
	def, ok := GetImporter(kind)
	if !ok {
		return ImporterDefinition{}, fmt.Errorf("unknown importer %q: %w", kind, ErrNotFound)
	}
	if def.Info.NeedsCohort && req.CohortID == "" {
		return ImporterDefinition{}, &ValidationError{Field: "cohortId", Message: "required field is empty"}
	}
	return def, nil
}
