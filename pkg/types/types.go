package types

import "time"

// Profile represents a DatoCMS credential profile
type Profile struct {
	Name      string            `json:"name"`
	Config    map[string]string `json:"config"` // api_token, environment, base_url
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Profile config keys
const (
	ConfigAPIToken    = "api_token"
	ConfigEnvironment = "environment"
	ConfigBaseURL     = "base_url"
)

// APIToken returns the CMA API token stored in the profile
func (p *Profile) APIToken() string {
	if p == nil || p.Config == nil {
		return ""
	}
	return p.Config[ConfigAPIToken]
}

// Environment returns the sandbox environment of the profile, empty for the primary one
func (p *Profile) Environment() string {
	if p == nil || p.Config == nil {
		return ""
	}
	return p.Config[ConfigEnvironment]
}

// BaseURL returns the CMA base URL override of the profile
func (p *Profile) BaseURL() string {
	if p == nil || p.Config == nil {
		return ""
	}
	return p.Config[ConfigBaseURL]
}

// Resource identifies the kind of DatoCMS entity an operation acts on
type Resource string

const (
	ResourceRecord   Resource = "record"
	ResourceUpload   Resource = "upload"
	ResourceItemType Resource = "itemType"
	ResourceBlock    Resource = "block"
)

// Operation identifies what to do with a resource
type Operation string

const (
	OperationCreate    Operation = "create"
	OperationUpsert    Operation = "upsert"
	OperationGet       Operation = "get"
	OperationGetAll    Operation = "getAll"
	OperationUpdate    Operation = "update"
	OperationDelete    Operation = "delete"
	OperationPublish   Operation = "publish"
	OperationUnpublish Operation = "unpublish"
	OperationBulk      Operation = "bulk"
)

// MappingMode controls where record field values come from
type MappingMode string

const (
	// MappingDefineBelow takes values from Request.Fields and normalizes them against the schema
	MappingDefineBelow MappingMode = "defineBelow"
	// MappingAutoMap sends the input record as-is
	MappingAutoMap MappingMode = "autoMapInputData"
)

// FilterCondition is one row of the record filter DSL
type FilterCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
}

// Request describes one operation executed against a single input record
type Request struct {
	Resource  Resource  `json:"resource"`
	Operation Operation `json:"operation"`

	// ItemType accepts a raw ID, "id:<id>", "api_key:<key>" or an editor URL
	ItemType string `json:"item_type,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	UploadID string `json:"upload_id,omitempty"`

	MappingMode     MappingMode       `json:"mapping_mode,omitempty"`
	Fields          map[string]any    `json:"fields,omitempty"`
	MatchingColumns []string          `json:"matching_columns,omitempty"`
	Filters         []FilterCondition `json:"filters,omitempty"`

	ReturnAll bool `json:"return_all,omitempty"`
	Limit     int  `json:"limit,omitempty"`

	// CreateIfNotFound defaults to true when unset
	CreateIfNotFound *bool `json:"create_if_not_found,omitempty"`
	AutoPublish      bool  `json:"auto_publish,omitempty"`

	Upload *UploadParams     `json:"upload,omitempty"`
	Bulk   *BulkUploadParams `json:"bulk,omitempty"`
}

// ShouldCreateIfNotFound reports whether an upsert without match creates a record
func (r *Request) ShouldCreateIfNotFound() bool {
	if r.CreateIfNotFound == nil {
		return true
	}
	return *r.CreateIfNotFound
}

// UploadParams parameters for creating or listing uploads
type UploadParams struct {
	URL                         string `json:"url,omitempty"`
	FilePath                    string `json:"file_path,omitempty"`
	Filename                    string `json:"filename,omitempty"`
	SkipCreationIfAlreadyExists bool   `json:"skip_creation_if_already_exists,omitempty"`
	Collection                  string `json:"collection,omitempty"`
	IncludeOtherInputFields     bool   `json:"include_other_input_fields,omitempty"`
}

// BulkUploadParams parameters for uploading every URL referenced by an input record
type BulkUploadParams struct {
	// Source is a jq expression selecting a URL, a URL list or a list of objects with a url key
	Source                      string `json:"source"`
	OutputField                 string `json:"output_field,omitempty"`
	Concurrency                 int    `json:"concurrency,omitempty"`
	SkipCreationIfAlreadyExists bool   `json:"skip_creation_if_already_exists,omitempty"`
	Collection                  string `json:"collection,omitempty"`
}

// Confirmation represents user confirmation settings
type Confirmation struct {
	BatchMode   bool          `json:"batch_mode"`
	AutoApprove bool          `json:"auto_approve"`
	Timeout     time.Duration `json:"timeout"`
	DefaultDeny bool          `json:"default_deny"`
}

// ProfileMetadata represents metadata about a profile
type ProfileMetadata struct {
	Name        string    `json:"name"`
	Environment string    `json:"environment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SafeError represents a safe error that can be exposed to clients
type SafeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
