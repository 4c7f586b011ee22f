// Package topics holds the quiz topic catalog: topics with optional
// subtopics, the countries questions are localized to, and the seedable music
// genres.
package topics

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog drives start_game validation. Topics without subtopics quiz on the
// topic plus country alone.
type Catalog struct {
	Topics    map[string][]string `yaml:"topics"`
	Countries []string            `yaml:"countries"`
	Genres    []string            `yaml:"genres"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Topics: map[string][]string{
			"Science":    {"Physics", "Biology", "Chemistry", "Astronomy"},
			"History":    {"World War I", "World War II", "Ancient Civilizations", "Modern History"},
			"Geography":  {},
			"Technology": {"Artificial Intelligence", "Programming", "Cybersecurity"},
			"Sports":     {},
			"Music":      {"Classical", "Pop", "Rock", "Jazz"},
		},
		Countries: []string{
			"Austria", "Belgium", "Bulgaria", "Croatia", "Cyprus", "Czech Republic",
			"Denmark", "Estonia", "Finland", "France", "Germany", "Greece", "Hungary",
			"Ireland", "Italy", "Latvia", "Lithuania", "Luxembourg", "Malta", "Netherlands",
			"Poland", "Portugal", "Romania", "Slovakia", "Slovenia", "Spain", "Sweden",
		},
		Genres: []string{"pop", "rock", "jazz", "classical", "hip-hop", "electro"},
	}
}

// Load reads a catalog from a yaml file, for deployments that override the
// built-in one.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &c, nil
}

// TopicNames lists topics in stable order.
func (c *Catalog) TopicNames() []string {
	names := make([]string, 0, len(c.Topics))
	for name := range c.Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subtopics returns the subtopics of a topic.
func (c *Catalog) Subtopics(topic string) ([]string, bool) {
	subs, ok := c.Topics[topic]
	return subs, ok
}

// ValidTopic reports whether the topic exists.
func (c *Catalog) ValidTopic(topic string) bool {
	_, ok := c.Topics[topic]
	return ok
}

// ValidCountry reports whether the country is in the catalog.
func (c *Catalog) ValidCountry(country string) bool {
	for _, candidate := range c.Countries {
		if candidate == country {
			return true
		}
	}
	return false
}

// NormalizeSelection validates a trivia selection the way the start route
// does: unknown topics and countries fail, a subtopic is required when the
// topic has subtopics and cleared when it has none.
func (c *Catalog) NormalizeSelection(topic, subtopic, country string) (string, error) {
	subs, ok := c.Topics[topic]
	if !ok {
		return "", fmt.Errorf("invalid topic %q", topic)
	}
	if !c.ValidCountry(country) {
		return "", fmt.Errorf("invalid country %q", country)
	}
	if len(subs) == 0 {
		return "", nil
	}
	if subtopic == "" {
		return "", fmt.Errorf("subtopic is required for topic %q", topic)
	}
	for _, candidate := range subs {
		if candidate == subtopic {
			return subtopic, nil
		}
	}
	return "", fmt.Errorf("invalid subtopic %q for topic %q", subtopic, topic)
}
