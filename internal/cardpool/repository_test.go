package cardpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manadraft/league/internal/models"
)

func TestParseColorIdentity(t *testing.T) {
	assert.Equal(t, models.ColorIdentity{models.ColorWhite, models.ColorBlue, models.ColorBlack},
		ParseColorIdentity("WUB"))
	assert.Empty(t, ParseColorIdentity(""))
	// Unknown letters are dropped, not errors.
	assert.Equal(t, models.ColorIdentity{models.ColorRed}, ParseColorIdentity("XRZ"))
}

func TestEncodeColorIdentity_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "W", "UG", "WUBRG"} {
		assert.Equal(t, s, EncodeColorIdentity(ParseColorIdentity(s)))
	}
}
