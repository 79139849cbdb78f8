package tdjson

import (
	"encoding/json"
	"fmt"
)

// Request is an outbound engine call. RequestType is the "@type" sent on the
// wire; the remaining fields are marshalled as the request body.
type Request interface {
	RequestType() string
}

// Encode renders req as a wire object, tagging it with extra when non-empty.
func Encode(req Request, extra string) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("tdjson: encode %s: %w", req.RequestType(), err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("tdjson: encode %s: request must be an object: %w", req.RequestType(), err)
	}
	fields["@type"], _ = json.Marshal(req.RequestType())
	if extra != "" {
		fields["@extra"], _ = json.Marshal(extra)
	}
	return json.Marshal(fields)
}

// TdlibParameters is the static per-session configuration sent while the
// engine waits for parameters.
type TdlibParameters struct {
	UseTestDC              bool   `json:"use_test_dc" yaml:"use_test_dc"`
	DatabaseDirectory      string `json:"database_directory" yaml:"database_directory"`
	FilesDirectory         string `json:"files_directory" yaml:"files_directory"`
	UseFileDatabase        bool   `json:"use_file_database" yaml:"use_file_database"`
	UseChatInfoDatabase    bool   `json:"use_chat_info_database" yaml:"use_chat_info_database"`
	UseMessageDatabase     bool   `json:"use_message_database" yaml:"use_message_database"`
	UseSecretChats         bool   `json:"use_secret_chats" yaml:"use_secret_chats"`
	APIID                  int32  `json:"api_id" yaml:"api_id"`
	APIHash                string `json:"api_hash" yaml:"api_hash"`
	SystemLanguageCode     string `json:"system_language_code" yaml:"system_language_code"`
	DeviceModel            string `json:"device_model" yaml:"device_model"`
	SystemVersion          string `json:"system_version" yaml:"system_version"`
	ApplicationVersion     string `json:"application_version" yaml:"application_version"`
	EnableStorageOptimizer bool   `json:"enable_storage_optimizer" yaml:"enable_storage_optimizer"`
	IgnoreFileNames        bool   `json:"ignore_file_names" yaml:"ignore_file_names"`
}

// MarshalJSON adds the nested object's "@type".
func (p TdlibParameters) MarshalJSON() ([]byte, error) {
	type plain TdlibParameters
	return json.Marshal(struct {
		Type string `json:"@type"`
		plain
	}{Type: "tdlibParameters", plain: plain(p)})
}

type GetApplicationConfig struct{}

func (GetApplicationConfig) RequestType() string { return "getApplicationConfig" }

type GetAuthorizationState struct{}

func (GetAuthorizationState) RequestType() string { return "getAuthorizationState" }

type SetTdlibParameters struct {
	Parameters TdlibParameters `json:"parameters"`
}

func (SetTdlibParameters) RequestType() string { return "setTdlibParameters" }

type CheckDatabaseEncryptionKey struct {
	EncryptionKey string `json:"encryption_key"`
}

func (CheckDatabaseEncryptionKey) RequestType() string { return "checkDatabaseEncryptionKey" }

type SetAuthenticationPhoneNumber struct {
	PhoneNumber string `json:"phone_number"`
}

func (SetAuthenticationPhoneNumber) RequestType() string { return "setAuthenticationPhoneNumber" }

type CheckAuthenticationCode struct {
	Code string `json:"code"`
}

func (CheckAuthenticationCode) RequestType() string { return "checkAuthenticationCode" }

type CheckAuthenticationPassword struct {
	Password string `json:"password"`
}

func (CheckAuthenticationPassword) RequestType() string { return "checkAuthenticationPassword" }

type RegisterUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (RegisterUser) RequestType() string { return "registerUser" }

// LogOut ends the session's authorization; the engine walks through
// LoggingOut, Closing and Closed.
type LogOut struct{}

func (LogOut) RequestType() string { return "logOut" }

// Close shuts the session down without logging out.
type Close struct{}

func (Close) RequestType() string { return "close" }

// Raw sends an arbitrary request the package has no type for.
type Raw struct {
	Type   string
	Fields map[string]any
}

func (r Raw) RequestType() string { return r.Type }

func (r Raw) MarshalJSON() ([]byte, error) {
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}
