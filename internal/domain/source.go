package domain

// SourceFile is one file of a verified source tree
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ContractSource is the verified source of a contract as published by a block explorer
type ContractSource struct {
	Address         string       `json:"address"`
	ContractName    string       `json:"contract_name"`
	CompilerVersion string       `json:"compiler_version"`
	Files           []SourceFile `json:"files"`
	Remappings      []string     `json:"remappings,omitempty"`
	Proxy           bool         `json:"proxy"`
	Implementation  string       `json:"implementation,omitempty"`
}
