package utils

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "491701234567", NormalizePhone("+49 170 1234567"))
	assert.Equal(t, "15551234567", NormalizePhone("1 (555) 123-4567"))
	assert.Equal(t, "", NormalizePhone("no digits here"))
}

func TestWhatsAppLink(t *testing.T) {
	link := WhatsAppLink("+49 170 1234567", "Rami", "Dune", "")
	require.True(t, strings.HasPrefix(link, "https://wa.me/491701234567?text="))

	u, err := url.Parse(link)
	require.NoError(t, err)
	text := u.Query().Get("text")
	assert.Contains(t, text, "Rami")
	assert.Contains(t, text, `"Dune"`)
	assert.Contains(t, text, "MeetRead")
}

func TestWhatsAppLinkAppendsNote(t *testing.T) {
	link := WhatsAppLink("123", "Rami", "Dune", "  back by Friday?  ")
	u, err := url.Parse(link)
	require.NoError(t, err)
	text := u.Query().Get("text")
	assert.True(t, strings.HasSuffix(text, "back by Friday?"))
}
