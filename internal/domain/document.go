package domain

// Diagram is a rendered visual element, ready to embed in a document.
type Diagram struct {
	ImageData []byte `json:"image_data"`
	Format    string `json:"format"`
	Caption   string `json:"caption"`
	Language  string `json:"language"`
}

// Document is an assembled output document.
type Document struct {
	Content   []byte `json:"content"`
	Filename  string `json:"filename"`
	PageCount int    `json:"page_count"`
}

// LanguageConfig describes one supported output language: its ISO 639-1
// code, display names, preferred font family, and text direction.
type LanguageConfig struct {
	Code       string `json:"code"        yaml:"code"`
	Name       string `json:"name"        yaml:"name"`
	NativeName string `json:"native_name" yaml:"native_name"`
	FontFamily string `json:"font_family" yaml:"font_family"`
	RTL        bool   `json:"rtl"         yaml:"rtl"`
}

// KnowledgeEntry is one unit of reference material in the knowledge base.
type KnowledgeEntry struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Topic      string   `json:"topic"`
	Content    string   `json:"content"`
	References []string `json:"references,omitempty"`
}
