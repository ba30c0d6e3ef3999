package config

// Provider identifies the backend family serving a model.
type Provider string

const (
	ProviderAzureOpenAI Provider = "AzureOpenAI"
	ProviderLocalAI     Provider = "LocalAI"
)

// ModelDescriptor is one entry of the models file.
type ModelDescriptor struct {
	Name       string   `json:"model_name" yaml:"model_name" mapstructure:"model_name" validate:"required"`
	Provider   Provider `json:"provider" yaml:"provider" mapstructure:"provider" validate:"required,oneof=AzureOpenAI LocalAI"`
	Endpoint   string   `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	APIVersion string   `json:"api_version,omitempty" yaml:"api_version" mapstructure:"api_version"`
}

// Credentials are shared by every model client. Both fields may be empty.
type Credentials struct {
	APIKey       string
	DefaultModel string
}
