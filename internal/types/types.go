// Package types defines core data types and enums shared across the PDF translator.
package types

// Config 应用配置
type Config struct {
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url"` // OpenAI 兼容 API 的 Base URL
	OpenAIModel   string `json:"openai_model"`

	// Azure Document Intelligence (optional, for the cloud extraction backend)
	AzureDIEndpoint string `json:"azure_di_endpoint"`
	AzureDIKey      string `json:"azure_di_key"`

	SourceLanguage string `json:"source_language"` // e.g. "English"
	TargetLanguage string `json:"target_language"` // e.g. "Korean"

	ChunkSize   int `json:"chunk_size"`   // pages per extraction chunk
	BatchSize   int `json:"batch_size"`   // merged blocks per translation request
	Concurrency int `json:"concurrency"`  // concurrent chunk pipelines
	MaxRetries  int `json:"max_retries"`  // attempts per translation batch

	WorkDirectory string `json:"work_directory"`

	FontName string  `json:"font_name"`
	FontPath string  `json:"font_path"`
	FontSize float64 `json:"font_size"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrNetwork      ErrorCode = "NETWORK_ERROR"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrCancelled    ErrorCode = "CANCELLED"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
