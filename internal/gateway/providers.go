package gateway

// Register the built-in providers with the llm factory registry.
import (
	_ "github.com/nulzo/reliability-forge/internal/llm/azure"
	_ "github.com/nulzo/reliability-forge/internal/llm/localai"
)
