package azure

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/llm"
)

const (
	cognitiveScope    = "https://cognitiveservices.azure.com/.default"
	defaultAPIVersion = "2024-02-15-preview"
)

func init() {
	llm.Register(config.ProviderAzureOpenAI, NewAdapter)
}

// Adapter calls an Azure OpenAI deployment named after the model.
// It authenticates with the shared API key when one is configured and with
// the Azure CLI identity otherwise.
type Adapter struct {
	name      string
	url       string
	apiKey    string
	tokens    llm.TokenSource
	transport *llm.Transport
}

func NewAdapter(desc config.ModelDescriptor, deps llm.Deps) (llm.Client, error) {
	version := desc.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	a := &Adapter{
		name:      desc.Name,
		url:       deploymentURL(desc.Endpoint, desc.Name, version),
		apiKey:    deps.Credentials.APIKey,
		transport: llm.NewTransport(desc.Name, deps.Transport, deps.Logger),
	}

	if a.apiKey == "" {
		a.tokens = deps.Tokens
		if a.tokens == nil {
			cred, err := azidentity.NewAzureCLICredential(nil)
			if err != nil {
				return nil, fmt.Errorf("azure cli credential for %s: %w", desc.Name, err)
			}
			a.tokens = CredentialTokens(cred)
		}
	}

	return a, nil
}

func deploymentURL(endpoint, deployment, version string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(endpoint, "/"),
		url.PathEscape(deployment),
		url.QueryEscape(version),
	)
}

func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) Provider() config.Provider {
	return config.ProviderAzureOpenAI
}

func (a *Adapter) Chat(ctx context.Context, prompt string, opts llm.ChatOptions) (string, error) {
	headers := make(map[string]string, 1)
	if a.apiKey != "" {
		headers["api-key"] = a.apiKey
	} else {
		token, err := a.tokens.Token(ctx)
		if err != nil {
			return "", &llm.Error{
				Kind:  llm.UnexpectedFailure,
				Model: a.name,
				Cause: "failed to acquire identity token",
				Err:   err,
			}
		}
		headers["Authorization"] = "Bearer " + token
	}

	return a.transport.PostChat(ctx, a.url, headers, llm.NewChatRequest(a.name, prompt, opts))
}

// CredentialTokens adapts an azcore credential to llm.TokenSource.
func CredentialTokens(cred azcore.TokenCredential) llm.TokenSource {
	return credentialTokens{cred: cred}
}

type credentialTokens struct {
	cred azcore.TokenCredential
}

func (c credentialTokens) Token(ctx context.Context) (string, error) {
	tok, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{cognitiveScope}})
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}
