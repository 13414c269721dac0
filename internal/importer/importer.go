package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/suPer8Hu/postcraft/internal/persona"
	"github.com/suPer8Hu/postcraft/internal/prompt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tag, CustomerInfo and Prompt mirror the desktop app's export files.
// Unknown fields are ignored.
type Tag struct {
	Name string `json:"name"`
}

type CustomerInfo struct {
	Name string `json:"name"`
	// Details is a JSON encoded list of {prompt, response} pairs.
	Details string `json:"details"`
}

type Prompt struct {
	Name               string          `json:"name"`
	Details            string          `json:"details"`
	SelectedCustomers  map[string]bool `json:"selected_customers"`
	URL                *string         `json:"url"`
	MediaFilePath      *string         `json:"media_file_path"`
	AWSFolderURL       *string         `json:"aws_folder_url"`
	ArtworkDescription *string         `json:"artwork_description"`
	Tag                *string         `json:"tag"`
	ExampleImage       *string         `json:"example_image"`
}

type Request struct {
	Tags         []Tag          `json:"tags"`
	CustomerInfo []CustomerInfo `json:"customer_info"`
	Prompts      []Prompt       `json:"prompts"`
}

func (r Request) total() int {
	return len(r.Tags) + len(r.CustomerInfo) + len(r.Prompts)
}

type Result struct {
	Success              bool     `json:"success"`
	TagsImported         int      `json:"tags_imported"`
	CustomerInfoImported int      `json:"customer_info_imported"`
	PromptsImported      int      `json:"prompts_imported"`
	Errors               []string `json:"errors"`
}

// Policy decides when an import with item errors still counts as a success:
// it does while len(errors) < total*SuccessRatio.
type Policy struct {
	SuccessRatio float64
}

func DefaultPolicy() Policy { return Policy{SuccessRatio: 0.5} }

func (p Policy) succeeded(errs, total int) bool {
	if errs == 0 {
		return true
	}
	return float64(errs) < float64(total)*p.SuccessRatio
}

type TagStore interface {
	EnsureTag(ctx context.Context, name string) (*prompt.Tag, bool, error)
	ListTags(ctx context.Context) ([]prompt.Tag, error)
}

type PromptStore interface {
	FindByName(ctx context.Context, userID uint64, name string) (*prompt.Prompt, error)
	Create(ctx context.Context, p *prompt.Prompt) error
	Save(ctx context.Context, p *prompt.Prompt) error
}

type PersonaStore interface {
	Get(ctx context.Context, userID uint64, name string) (*persona.Record, error)
	Replace(ctx context.Context, userID uint64, name string, pairs []persona.Pair, description *string) (*persona.Record, error)
}

type Importer struct {
	tags    TagStore
	prompts PromptStore
	persona PersonaStore
	policy  Policy
}

func New(tags TagStore, prompts PromptStore, personas PersonaStore, policy Policy) *Importer {
	if policy.SuccessRatio <= 0 || policy.SuccessRatio > 1 {
		policy = DefaultPolicy()
	}
	return &Importer{tags: tags, prompts: prompts, persona: personas, policy: policy}
}

// Import loads tags, then persona records, then prompts. A failing item is
// recorded in Result.Errors and the rest carry on. The returned error is
// reserved for failures that stop the whole import.
func (im *Importer) Import(ctx context.Context, userID uint64, req Request) (*Result, error) {
	res := &Result{Errors: []string{}}

	for _, t := range req.Tags {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			res.Errors = append(res.Errors, "Tag '': name is required")
			continue
		}
		_, created, err := im.tags.EnsureTag(ctx, name)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Tag '%s': %v", name, err))
			continue
		}
		if created {
			res.TagsImported++
		}
	}

	// tags are global, so prompts may reference ones this request did not carry
	all, err := im.tags.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	tagIDs := make(map[string]uint64, len(all))
	for _, t := range all {
		tagIDs[t.Name] = t.ID
	}

	for _, ci := range req.CustomerInfo {
		if err := im.importCustomerInfo(ctx, userID, ci); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Customer info '%s': %v", ci.Name, err))
			continue
		}
		res.CustomerInfoImported++
	}

	for _, p := range req.Prompts {
		if err := im.importPrompt(ctx, userID, p, tagIDs); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Prompt '%s': %v", p.Name, err))
			continue
		}
		res.PromptsImported++
	}

	res.Success = im.policy.succeeded(len(res.Errors), req.total())
	log.Printf("[Import] user=%d tags=%d customer_info=%d prompts=%d errors=%d success=%t",
		userID, res.TagsImported, res.CustomerInfoImported, res.PromptsImported, len(res.Errors), res.Success)
	return res, nil
}

var (
	errUnknownCategory = errors.New("Unknown category")
	errInvalidDetails  = errors.New("Invalid JSON in details")
)

func (im *Importer) importCustomerInfo(ctx context.Context, userID uint64, ci CustomerInfo) error {
	if _, ok := persona.ParseCategory(ci.Name); !ok {
		return errUnknownCategory
	}
	pairs := []persona.Pair{}
	if strings.TrimSpace(ci.Details) != "" {
		if err := json.Unmarshal([]byte(ci.Details), &pairs); err != nil {
			return errInvalidDetails
		}
	}

	var description *string
	existing, err := im.persona.Get(ctx, userID, ci.Name)
	switch {
	case err == nil:
		description = existing.Description
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	_, err = im.persona.Replace(ctx, userID, ci.Name, pairs, description)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (im *Importer) importPrompt(ctx context.Context, userID uint64, in Prompt, tagIDs map[string]uint64) error {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Details == "" {
		return prompt.ErrNameRequired
	}

	var tagID *uint64
	if in.Tag != nil {
		if id, ok := tagIDs[*in.Tag]; ok {
			tagID = &id
		}
	}
	sel := in.SelectedCustomers
	if sel == nil {
		sel = map[string]bool{}
	}

	p, err := im.prompts.FindByName(ctx, userID, name)
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return err
	}
	if isNew {
		p = &prompt.Prompt{UserID: userID, Name: name}
	}
	p.Details = in.Details
	p.SelectedCustomers = datatypes.NewJSONType(sel)
	p.URL = deref(in.URL)
	p.MediaFilePath = deref(in.MediaFilePath)
	p.AWSFolderURL = deref(in.AWSFolderURL)
	p.ArtworkDescription = deref(in.ArtworkDescription)
	p.ExampleImage = deref(in.ExampleImage)
	p.TagID = tagID

	if isNew {
		return im.prompts.Create(ctx, p)
	}
	return im.prompts.Save(ctx, p)
}
