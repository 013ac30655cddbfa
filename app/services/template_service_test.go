package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateRender(t *testing.T) {
	templates := NewTemplateService()

	t.Run("SubstitutesVariables", func(t *testing.T) {
		out := templates.Render("Hi {name}, welcome to {business_name}!", map[string]string{
			"name":          "Dana",
			"business_name": "Glow Salon",
		})
		assert.Equal(t, "Hi Dana, welcome to Glow Salon!", out)
	})

	t.Run("UnknownMarkerRendersEmpty", func(t *testing.T) {
		out := templates.Render("Hi {name}{mystery}!", map[string]string{"name": "Dana"})
		assert.Equal(t, "Hi Dana!", out)
	})

	t.Run("DropsLineWhenAllMarkersEmpty", func(t *testing.T) {
		template := "Hi {name}!\nCall us: {business_phone}\nSee you soon"
		out := templates.Render(template, map[string]string{"name": "Dana"})
		assert.Equal(t, "Hi Dana!\nSee you soon", out)
	})

	t.Run("KeepsLineWhenSomeMarkerResolves", func(t *testing.T) {
		template := "Hours: {business_hours} Phone: {business_phone}"
		out := templates.Render(template, map[string]string{"business_hours": "9-5"})
		assert.Equal(t, "Hours: 9-5 Phone: ", out)
	})

	t.Run("PlainLinesUntouched", func(t *testing.T) {
		out := templates.Render("No markers here.\n\nJust text.", nil)
		assert.Equal(t, "No markers here.\n\nJust text.", out)
	})

	t.Run("UnterminatedMarkerLeftAsIs", func(t *testing.T) {
		out := templates.Render("Hi {name", map[string]string{"name": "Dana"})
		assert.Equal(t, "Hi {name", out)
	})
}

func TestTemplateHasLink(t *testing.T) {
	templates := NewTemplateService()

	assert.True(t, templates.HasLink("Book again: {link}"))
	assert.False(t, templates.HasLink("Thanks for visiting!"))
	assert.False(t, templates.HasLink("Call {business_phone}"))
}
