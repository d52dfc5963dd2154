package model

// PromptTemplate is a named, versioned prompt body the template catalog
// renders against a canonical message (spec §3, §4.5).
type PromptTemplate struct {
	Name                 string     `json:"name" gorm:"primaryKey;type:varchar(128)" yaml:"name"`
	Description          string     `json:"description" gorm:"type:text" yaml:"description"`
	Categories           StringList `json:"categories" gorm:"type:text" yaml:"categories"`
	Template             string     `json:"template" gorm:"type:text;not null" yaml:"template"`
	ExpectedOutputSchema string     `json:"expectedOutputSchema" gorm:"type:text" yaml:"expectedOutputSchema"`
	Version              int        `json:"version" gorm:"default:1" yaml:"version"`
	IsActive             bool       `json:"isActive" gorm:"default:true" yaml:"isActive"`
}

func (PromptTemplate) TableName() string { return "prompt_templates" }

// TemplateFixtureFile is the on-disk shape seed-templates reads (yaml.v3),
// a simple wrapper so a fixture file can hold more than one template.
type TemplateFixtureFile struct {
	Templates []PromptTemplate `yaml:"templates"`
}
