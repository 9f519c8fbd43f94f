package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnePasswordParse(t *testing.T) {
	data := "Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes\n" +
		"AWS Console,https://aws.amazon.com,admin,aws-pass,,false,false,,\n" +
		",https://www.example.com,user,ex-pass,,false,false,,\n" +
		"Wifi Note,,,,,false,false,,\n"

	result, err := (&OnePasswordParser{}).Parse([]byte(data))
	require.NoError(t, err)

	require.Len(t, result.Credentials, 2)
	assert.Equal(t, ImportedCredential{Name: "AWS Console", Link: "https://aws.amazon.com", Password: "aws-pass"}, result.Credentials[0])
	assert.Equal(t, "example.com", result.Credentials[1].Name)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "Wifi Note", result.Skipped[0].OriginalName)
}

func TestOnePasswordParseURLColumn(t *testing.T) {
	data := "title,url,password\nSite,https://site.test,pw\n"

	result, err := (&OnePasswordParser{}).Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, result.Credentials, 1)
	assert.Equal(t, "https://site.test", result.Credentials[0].Link)
}

func TestOnePasswordParseMissingTitle(t *testing.T) {
	_, err := (&OnePasswordParser{}).Parse([]byte("Website,Password\nhttps://a.com,pw\n"))
	assert.Error(t, err)
}
