package watches

import (
	"errors"
	"strings"
)

// ValidateCreate checks the required fields of a create request.
func ValidateCreate(req *CreateRequest) error {
	if strings.TrimSpace(req.OrgID) == "" {
		return errors.New("org_id is required")
	}
	if strings.TrimSpace(req.FigmaFileKey) == "" {
		return errors.New("figma_file_key is required")
	}
	if strings.TrimSpace(req.FigmaNodeID) == "" {
		return errors.New("figma_node_id is required")
	}
	if err := ValidateCodePath(req.CodePath); err != nil {
		return err
	}
	if req.Name != "" {
		return ValidateName(req.Name)
	}
	return nil
}

// ValidateName bounds the optional display name.
func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) > 100 {
		return errors.New("name must be 100 characters or less")
	}
	return nil
}

// ValidateCodePath requires a non-empty repository-relative path.
func ValidateCodePath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("code_path is required")
	}
	if strings.HasPrefix(path, "/") {
		return errors.New("code_path must be repository-relative, not absolute")
	}
	return nil
}
