package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_NormalizeSelection(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		topic    string
		subtopic string
		country  string
		want     string
		wantErr  bool
	}{
		{name: "valid with subtopic", topic: "Science", subtopic: "Physics", country: "France", want: "Physics"},
		{name: "subtopic required", topic: "Science", subtopic: "", country: "France", wantErr: true},
		{name: "subtopic cleared when topic has none", topic: "Geography", subtopic: "Rivers", country: "Spain", want: ""},
		{name: "unknown topic", topic: "Cooking", subtopic: "", country: "France", wantErr: true},
		{name: "unknown country", topic: "Sports", subtopic: "", country: "Brazil", wantErr: true},
		{name: "unknown subtopic", topic: "Science", subtopic: "Geology", country: "France", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.NormalizeSelection(tt.topic, tt.subtopic, tt.country)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_TopicNamesStable(t *testing.T) {
	c := Default()
	first := c.TopicNames()
	second := c.TopicNames()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "Geography")
}

func TestCatalog_ValidCountry(t *testing.T) {
	c := Default()
	assert.True(t, c.ValidCountry("France"))
	assert.False(t, c.ValidCountry("Atlantis"))
}
