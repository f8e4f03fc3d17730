package kpi

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Adjustment is a per-item credit or debit with an optional ceiling
type Adjustment struct {
	PerItem float64 `yaml:"per_item" json:"per_item"`
	// Cap limits the total; 0 means uncapped
	Cap float64 `yaml:"cap" json:"cap"`
}

// Amount returns the adjustment for n items
func (a Adjustment) Amount(n int) float64 {
	v := a.PerItem * float64(n)
	if a.Cap > 0 && v > a.Cap {
		return a.Cap
	}
	return v
}

// RatingBand maps scores at or above Min to Label
type RatingBand struct {
	Label string  `yaml:"label" json:"label"`
	Min   float64 `yaml:"min" json:"min"`
}

// Config holds the tunable parts of the scoring formula. The component
// weights are not configurable.
type Config struct {
	PendingBonus   Adjustment   `yaml:"pending_bonus" json:"pending_bonus"`
	OverduePenalty Adjustment   `yaml:"overdue_penalty" json:"overdue_penalty"`
	Ratings        []RatingBand `yaml:"ratings" json:"ratings"`
}

// DefaultConfig is used when no KPI file is configured
func DefaultConfig() Config {
	return Config{
		PendingBonus:   Adjustment{PerItem: 1, Cap: 5},
		OverduePenalty: Adjustment{PerItem: 5},
		Ratings: []RatingBand{
			{Label: "Excellent", Min: 90},
			{Label: "Good", Min: 75},
			{Label: "Average", Min: 60},
			{Label: "Needs Improvement", Min: 40},
			{Label: "Poor", Min: 0},
		},
	}
}

// LoadConfig reads a YAML KPI table. An empty path returns DefaultConfig.
// Sections missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read KPI config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML KPI table over the defaults
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("failed to parse KPI config: %w", err)
	}
	if file.PendingBonus != (Adjustment{}) {
		cfg.PendingBonus = file.PendingBonus
	}
	if file.OverduePenalty != (Adjustment{}) {
		cfg.OverduePenalty = file.OverduePenalty
	}
	if len(file.Ratings) > 0 {
		cfg.Ratings = file.Ratings
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the table and sorts rating bands from highest to lowest
func (c *Config) Validate() error {
	for name, a := range map[string]Adjustment{"pending_bonus": c.PendingBonus, "overdue_penalty": c.OverduePenalty} {
		if a.PerItem < 0 || a.Cap < 0 {
			return fmt.Errorf("%s: values must not be negative", name)
		}
	}
	if len(c.Ratings) == 0 {
		return fmt.Errorf("ratings: at least one band is required")
	}
	sort.SliceStable(c.Ratings, func(i, j int) bool { return c.Ratings[i].Min > c.Ratings[j].Min })
	for _, r := range c.Ratings {
		if r.Label == "" {
			return fmt.Errorf("ratings: band with min %.2f has no label", r.Min)
		}
	}
	return nil
}

// Rate maps a score to its band label. Scores below every band get the lowest label.
func (c Config) Rate(score float64) string {
	for _, r := range c.Ratings {
		if score >= r.Min {
			return r.Label
		}
	}
	return c.Ratings[len(c.Ratings)-1].Label
}
