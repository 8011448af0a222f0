package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables read by Load.
const (
	EnvDBPath            = "VORTEX_DB_PATH"
	EnvCollection        = "VORTEX_COLLECTION"
	EnvHost              = "VORTEX_AI_HOST"
	EnvEmbeddingHost     = "VORTEX_EMBEDDING_HOST"
	EnvChatHost          = "VORTEX_CHAT_HOST"
	EnvEmbeddingModel    = "VORTEX_EMBEDDING_MODEL"
	EnvChatModel         = "VORTEX_CHAT_MODEL"
	EnvAPIKey            = "OPENAI_API_KEY"
	EnvMaxTokens         = "VORTEX_MAX_TOKENS"
	EnvK                 = "VORTEX_K"
	EnvFetchK            = "VORTEX_FETCH_K"
	EnvLambda            = "VORTEX_LAMBDA"
	EnvTemperature       = "VORTEX_TEMPERATURE"
	EnvSystemPromptFile  = "VORTEX_SYSTEM_PROMPT_FILE"
	EnvSourceDir         = "VORTEX_SOURCE_DIR"
	EnvPoolSize          = "VORTEX_POOL_SIZE"
	EnvRateLimit         = "VORTEX_RATE_LIMIT"
	EnvRetryDelay        = "VORTEX_RETRY_DELAY"
	EnvAddr              = "VORTEX_ADDR"
	EnvMaxQuestionLength = "VORTEX_MAX_QUESTION_LENGTH"
)

// applyEnv overrides settings with every environment variable that is set.
func (s *Settings) applyEnv() error {
	envString(EnvDBPath, &s.Storage.Path)
	envString(EnvCollection, &s.Storage.Collection)
	envString(EnvHost, &s.AI.Host)
	envString(EnvEmbeddingHost, &s.AI.EmbeddingHost)
	envString(EnvChatHost, &s.AI.ChatHost)
	envString(EnvEmbeddingModel, &s.AI.EmbeddingModel)
	envString(EnvChatModel, &s.AI.ChatModel)
	envString(EnvAPIKey, &s.AI.APIKey)
	envString(EnvSystemPromptFile, &s.Retrieval.SystemPromptFile)
	envString(EnvSourceDir, &s.Ingestion.SourceDir)
	envString(EnvAddr, &s.Server.Addr)

	for _, err := range []error{
		envInt(EnvMaxTokens, &s.AI.MaxTokens),
		envInt(EnvK, &s.Retrieval.K),
		envInt(EnvFetchK, &s.Retrieval.FetchK),
		envFloat(EnvLambda, &s.Retrieval.Lambda),
		envFloat(EnvTemperature, &s.Retrieval.Temperature),
		envInt(EnvPoolSize, &s.Ingestion.PoolSize),
		envFloat(EnvRateLimit, &s.Ingestion.RateLimit),
		envDuration(EnvRetryDelay, &s.Ingestion.RetryDelay),
		envInt(EnvMaxQuestionLength, &s.Server.MaxQuestionLength),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidSettings, key, v)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidSettings, key, v)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s must be a duration, got %q", ErrInvalidSettings, key, v)
	}
	*dst = Duration(d)
	return nil
}
