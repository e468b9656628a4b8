package model

// ================ Config ================
type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"30m"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
	Stream   bool   `envconfig:"CONVERSATION_STREAM" default:"true"`
}

type GenerationConfig struct {
	APIKey      string  `envconfig:"GEMINI_API_KEY"`
	BaseURL     string  `envconfig:"GEMINI_BASE_URL"`
	MaxTokens   int     `envconfig:"GENERATION_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"GENERATION_TEMPERATURE" default:"0.2"`
}

type CatalogConfig struct {
	ModelIDs []string `envconfig:"MODEL_IDS" default:"gemini-2.5-flash,gemini-2.5-flash-lite"`
	// DisplayNames maps model ids to labels, e.g. "gemini-2.5-flash:Gemini 2.5 Flash".
	DisplayNames map[string]string `envconfig:"MODEL_DISPLAY_NAMES" default:"gemini-2.5-flash:Gemini 2.5 Flash,gemini-2.5-flash-lite:Gemini 2.5 Flash-Lite"`
}

type RetrieverConfig struct {
	DocumentsPath string `envconfig:"DOCUMENTS_PATH" default:"documents.yaml"`
	TopK          int    `envconfig:"RETRIEVER_TOP_K" default:"5"`
}

type FilterConfig struct {
	Path string `envconfig:"FILTER_CONFIG_PATH" default:"filters.yaml"`
}

type PresetStoreConfig struct {
	// Backend selects the preset store: "redis" or "sqlite".
	Backend    string `envconfig:"PRESET_STORE" default:"sqlite"`
	SQLitePath string `envconfig:"PRESET_SQLITE_PATH" default:"presets.db"`
}

type LogConfig struct {
	File       string `envconfig:"LOG_FILE"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"20"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
}
