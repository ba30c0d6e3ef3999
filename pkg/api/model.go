package api

type Model struct {
	ID       string `json:"id"`
	Object   string `json:"object"` // "model"
	Provider string `json:"provider"`
	Endpoint string `json:"endpoint"`
	Default  bool   `json:"default"`
}

type Pattern struct {
	ID     string            `json:"id"`
	Object string            `json:"object"` // "pattern"
	Vars   map[string]string `json:"vars,omitempty"`
}
