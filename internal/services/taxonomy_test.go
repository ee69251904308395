package services_test

import (
	"errors"
	"testing"

	"jlrp/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTaxonomy_AllValidPairs(t *testing.T) {
	for category, subs := range services.Categories {
		for _, sub := range subs {
			cat, got, err := services.ValidateTaxonomy(" "+category+" ", sub)
			require.NoError(t, err, "%s/%s", category, sub)
			assert.Equal(t, category, cat)
			assert.Equal(t, sub, got)
		}
	}
}

func TestValidateTaxonomy_Normalizes(t *testing.T) {
	cat, sub, err := services.ValidateTaxonomy("Clothing", "  KURTI ")
	require.NoError(t, err)
	assert.Equal(t, "clothing", cat)
	assert.Equal(t, "kurti", sub)
}

func TestValidateTaxonomy_Rejects(t *testing.T) {
	tests := []struct {
		name        string
		category    string
		subcategory string
		want        string
	}{
		{"unknown category", "footwear", "sneakers", "category must be one of"},
		{"unknown subcategory", "clothing", "sneakers", "subcategory must be one of"},
		{"empty subcategory", "clothing", "", "subcategory must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := services.ValidateTaxonomy(tt.category, tt.subcategory)
			require.Error(t, err)
			assert.True(t, errors.Is(err, services.ErrValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateGender(t *testing.T) {
	g, err := services.ValidateGender(" Women")
	require.NoError(t, err)
	assert.Equal(t, "women", g)

	_, err = services.ValidateGender("kids")
	assert.ErrorIs(t, err, services.ErrValidation)
}
