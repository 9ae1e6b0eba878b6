package upload

import (
	"fmt"
	"strings"

	"minimill/internal/domain"
)

// Rejection explains why one candidate file was not selected.
type Rejection struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Validator checks candidate files against the allowed MIME types and the
// maximum size. The type is checked first.
type Validator struct {
	allowed   map[string]struct{}
	maxBytes  int64
	typeLabel string
	sizeLabel string
}

// NewValidator builds a validator. maxBytes must be positive.
func NewValidator(allowedTypes []string, maxBytes int64) *Validator {
	allowed := make(map[string]struct{}, len(allowedTypes))
	ordered := make([]string, 0, len(allowedTypes))
	for _, t := range allowedTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := allowed[t]; dup {
			continue
		}
		allowed[t] = struct{}{}
		ordered = append(ordered, t)
	}
	return &Validator{
		allowed:   allowed,
		maxBytes:  maxBytes,
		typeLabel: typeListLabel(ordered),
		sizeLabel: fmt.Sprintf("%dMB", maxBytes/(1024*1024)),
	}
}

// Check returns nil when file is acceptable, otherwise a rejection.
func (v *Validator) Check(file domain.FileMetadata) *Rejection {
	if _, ok := v.allowed[strings.ToLower(strings.TrimSpace(file.Type))]; !ok {
		return &Rejection{
			Name:    file.Name,
			Message: fmt.Sprintf("%s: Unsupported file type. Please use %s.", file.Name, v.typeLabel),
		}
	}
	if file.Size > v.maxBytes {
		return &Rejection{
			Name:    file.Name,
			Message: fmt.Sprintf("%s: File too large. Maximum size is %s.", file.Name, v.sizeLabel),
		}
	}
	return nil
}

// Partition splits candidates into accepted files and rejections, keeping
// the input order of each.
func (v *Validator) Partition(candidates []domain.FileMetadata) ([]domain.FileMetadata, []Rejection) {
	valid := make([]domain.FileMetadata, 0, len(candidates))
	var rejected []Rejection
	for _, candidate := range candidates {
		if r := v.Check(candidate); r != nil {
			rejected = append(rejected, *r)
			continue
		}
		valid = append(valid, candidate)
	}
	return valid, rejected
}

// typeListLabel renders ["video/mp4", "video/webm"] as "MP4 or WebM".
func typeListLabel(types []string) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		sub := t
		if idx := strings.LastIndexByte(t, '/'); idx >= 0 {
			sub = t[idx+1:]
		}
		if sub == "webm" {
			names = append(names, "WebM")
			continue
		}
		names = append(names, strings.ToUpper(sub))
	}
	switch len(names) {
	case 0:
		return "a supported video format"
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
}
