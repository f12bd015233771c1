package models

// DefaultMultiProviders is used when a multi-provider scrape names no providers.
var DefaultMultiProviders = []string{"tibber", "enbw"}

// Selection is the combination of data sources a caller wants compared.
type Selection struct {
	Basic          bool
	CSV            bool
	Providers      []string
	Multi          bool
	MultiProviders []string
}

// Empty reports whether nothing was selected.
func (s Selection) Empty() bool {
	return !s.Basic && !s.CSV && len(s.Providers) == 0 && !s.Multi
}

// CompareParams carries the user input shared by every selected source.
type CompareParams struct {
	Profile  ConsumptionProfile
	Upload   *Upload
	ZipCode  string
	Headless bool
	Debug    bool
}
